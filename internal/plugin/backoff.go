package plugin

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// OfflineWait resolves how long the engine should sleep before retrying a
// failed connection (spec §4.8 step 2): a plugin's own ServerOffline advice
// wins when it returns a positive second count; 0 means "treat as online,
// retry immediately"; a negative plugin result (including "not supported")
// falls back to the mapping's configured wait_duration, which may itself be
// -1 to mean "exit instead of waiting".
func OfflineWait(ctx context.Context, h Handle, mappingWaitSeconds int) (seconds int, shouldExit bool) {
	if oa, ok := h.(OfflineAware); ok {
		if s, err := oa.ServerOffline(ctx, h); err == nil && s >= 0 {
			return s, false
		}
	}
	if mappingWaitSeconds == -1 {
		return 0, true
	}
	return mappingWaitSeconds, false
}

// Limiter paces attempts to at most one per caller-chosen interval, built on
// the same golang.org/x/time/rate primitive the teacher reserves for
// dispatch pacing. The engine's offline path does not use it; it sleeps for
// the duration OfflineWait returns.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter returns a limiter allowing at most one reconnect attempt per
// interval, with a single-attempt burst.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the limiter permits another attempt, or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.l.Wait(ctx)
}
