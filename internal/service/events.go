package service

import (
	"sync"
	"time"

	"waflow/internal/constants"
)

// Event types published on the hub.
const (
	EventMessageSent      = "message.sent"
	EventMessageFailed    = "message.failed"
	EventRecipientBlocked = "recipient.blocked"
	EventCampaignComplete = "campaign.completed"
	EventRiskRaised       = "risk.raised"
	EventRiskDecayed      = "risk.decayed"
	EventAccountSuspended = "account.suspended"
	EventAccountStatus    = "account.status"
)

// Event is one dispatch-governor occurrence pushed to live subscribers.
type Event struct {
	Type       string            `json:"type"`
	AccountID  int64             `json:"accountId,omitempty"`
	CampaignID int64             `json:"campaignId,omitempty"`
	Detail     map[string]string `json:"detail,omitempty"`
	At         time.Time         `json:"at"`
}

// EventHub fans events out to websocket subscribers. Publishing never
// blocks; a subscriber that cannot keep up loses events.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release the channel.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, constants.DefaultEventFeedBufferSize)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer space.
func (h *EventHub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
