package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the breaker's current admission mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker guards calls to an unreliable remote dependency. After
// maxFailures consecutive failures it opens; after cooldown it lets a
// limited number of probe calls through and closes again once enough of
// them succeed.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	probeQuota  int
	logger      *logrus.Logger

	mu            sync.Mutex
	state         State
	failures      int
	probeSuccess  int
	probesInUse   int
	lastFailureAt time.Time
}

func New(name string, maxFailures int, cooldown time.Duration, logger *logrus.Logger) *Breaker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Breaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		probeQuota:  3,
		state:       StateClosed,
		logger:      logger,
	}
}

// OpenError is returned when the breaker rejects a call outright.
type OpenError struct {
	Name  string
	State State
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is %s", e.Name, e.State)
}

// IsOpen reports whether err is a breaker rejection.
func IsOpen(err error) bool {
	_, ok := err.(*OpenError)
	return ok
}

// Execute runs fn when the breaker admits the call, recording the
// outcome. Rejected calls return *OpenError without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.admit() {
		return &OpenError{Name: b.name, State: b.CurrentState()}
	}

	err := fn(ctx)
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailureAt) < b.cooldown {
			return false
		}
		b.toHalfOpen()
		fallthrough
	case StateHalfOpen:
		if b.probesInUse >= b.probeQuota {
			return false
		}
		b.probesInUse++
		return true
	default:
		return false
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.probeSuccess++
		if b.probeSuccess >= b.probeQuota {
			b.state = StateClosed
			b.failures = 0
			b.probeSuccess = 0
			b.probesInUse = 0
			b.logger.WithField("breaker", b.name).Info("Circuit breaker closed after recovery")
		}
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailureAt = time.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.maxFailures {
			b.trip()
		}
	case StateHalfOpen:
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.probeSuccess = 0
	b.probesInUse = 0
	b.logger.WithFields(logrus.Fields{
		"breaker":  b.name,
		"failures": b.failures,
	}).Warn("Circuit breaker opened")
}

func (b *Breaker) toHalfOpen() {
	b.state = StateHalfOpen
	b.probeSuccess = 0
	b.probesInUse = 0
	b.logger.WithField("breaker", b.name).Info("Circuit breaker half-open, probing")
}

// CurrentState returns the state, promoting open to half-open when the
// cooldown has elapsed.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.lastFailureAt) >= b.cooldown {
		b.toHalfOpen()
	}
	return b.state
}
