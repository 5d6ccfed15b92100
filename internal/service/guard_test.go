package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignGuardExclusive(t *testing.T) {
	guard := NewCampaignGuard()

	assert.True(t, guard.TryAcquire(1))
	assert.False(t, guard.TryAcquire(1), "second acquire on the same campaign must fail")
	assert.True(t, guard.TryAcquire(2), "other campaigns are unaffected")

	guard.Release(1)
	assert.True(t, guard.TryAcquire(1))
}

func TestCampaignGuardConcurrent(t *testing.T) {
	guard := NewCampaignGuard()

	var wg sync.WaitGroup
	acquired := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired <- guard.TryAcquire(7)
		}()
	}
	wg.Wait()
	close(acquired)

	wins := 0
	for ok := range acquired {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}
