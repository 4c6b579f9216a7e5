package plugin

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by Breaker.Execute while the breaker is open.
var ErrBreakerOpen = errors.New("plugin: circuit breaker open")

// BreakerState mirrors the classic closed/open/half-open circuit breaker
// state machine, ported from the teacher's pkg/circuit_breaker package.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// BreakerConfig tunes when a Breaker trips.
type BreakerConfig struct {
	MaxFailures  int64
	ResetTimeout time.Duration
}

// Breaker wraps repeated plugin calls against one Handle so that once a
// connection is clearly unusable, the engine stops paying for redundant
// failed calls within the same offline window and falls straight through to
// the offline protocol (spec §4.8 step 2). It never changes *whether* the
// offline protocol runs — only how quickly a already-known-bad connection
// short-circuits further calls.
type Breaker struct {
	cfg      BreakerConfig
	mu       sync.Mutex
	state    BreakerState
	failures int64
	nextTry  time.Time
}

// NewBreaker returns a closed breaker with sensible defaults when cfg's
// fields are zero.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: BreakerClosed}
}

// Execute runs fn unless the breaker is open and the reset timeout hasn't
// elapsed, in which case it returns ErrBreakerOpen without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == BreakerOpen {
		if time.Now().Before(b.nextTry) {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.state = BreakerOpen
			b.nextTry = time.Now().Add(b.cfg.ResetTimeout)
		}
		return err
	}
	b.state = BreakerClosed
	b.failures = 0
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to closed, used after a successful
// reconnect (spec §4.8 step 10).
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.nextTry = time.Time{}
}
