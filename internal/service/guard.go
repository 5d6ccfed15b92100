package service

import (
	"sync"
)

// CampaignGuard prevents two dispatch tasks from working the same
// campaign at once. The in-process implementation below is
// single-instance-only; the interface exists so a distributed lock can
// replace it without touching the dispatcher.
type CampaignGuard interface {
	TryAcquire(campaignID int64) bool
	Release(campaignID int64)
}

type inProcessGuard struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewCampaignGuard returns a process-local campaign guard.
func NewCampaignGuard() CampaignGuard {
	return &inProcessGuard{inFlight: make(map[int64]struct{})}
}

func (g *inProcessGuard) TryAcquire(campaignID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.inFlight[campaignID]; held {
		return false
	}
	g.inFlight[campaignID] = struct{}{}
	return true
}

func (g *inProcessGuard) Release(campaignID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, campaignID)
}
