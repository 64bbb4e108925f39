// Package backoff provides exponential backoff with symmetric jitter for the
// retry loops in the blob store adapter and the model adapter.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy defines exponential backoff parameters. The delay before attempt n
// (1-based) is Initial * Factor^(n-1), jittered by ±Jitter and clamped to Max.
type Policy struct {
	// Initial is the delay after the first failed attempt.
	Initial time.Duration
	// Max caps the computed delay. Zero means no cap.
	Max time.Duration
	// Factor is the exponential multiplier per attempt.
	Factor float64
	// Jitter is the symmetric randomization fraction in [0, 1].
	// 0.25 means the delay is scaled by a uniform value in [0.75, 1.25].
	Jitter float64
}

// Delay computes the jittered delay before retrying after the given failed
// attempt number (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	return p.delayWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

// delayWithRand computes the delay using a provided random value in [0, 1),
// kept separate so tests can pin the jitter.
func (p Policy) delayWithRand(attempt int, random float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2
	}
	base := float64(p.Initial) * math.Pow(factor, float64(attempt-1))
	if p.Jitter > 0 {
		// Scale by a uniform value in [1-Jitter, 1+Jitter].
		base *= 1 + p.Jitter*(2*random-1)
	}
	if p.Max > 0 && base > float64(p.Max) {
		base = float64(p.Max)
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}

// Sleep blocks for d or until the context is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
