package sender

import (
	"context"
	"math/rand/v2"
	"time"
)

// backoff is exponential with equal jitter: attempt n waits a value in
// [d/2, d) where d = base * 2^(n-1), capped at max. Below the cap each
// delay is strictly larger than the one before.
type backoff struct {
	base   time.Duration
	max    time.Duration
	jitter func(n int64) int64 // uniform in [0, n)
}

func newBackoff(base, max time.Duration, jitter func(n int64) int64) backoff {
	if jitter == nil {
		jitter = rand.Int64N
	}
	return backoff{base: base, max: max, jitter: jitter}
}

func (b backoff) delay(attempt int) time.Duration {
	exp := b.base
	for i := 1; i < attempt && exp < b.max; i++ {
		exp *= 2
	}
	if b.max > 0 && exp > b.max {
		exp = b.max
	}
	half := exp / 2
	spread := int64(exp - half)
	if spread <= 0 {
		return exp
	}
	return half + time.Duration(b.jitter(spread))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
