package scraper

import (
	"context"
	"math/rand/v2"
	"time"
)

// Politeness sleeps a uniform random duration in [min, max] before each
// browser-path page fetch. The randomness is deliberate: it avoids a
// detectable fixed cadence. There is no shared token bucket.
type Politeness struct {
	min time.Duration
	max time.Duration
}

// NewPoliteness creates a limiter for the given window. A max below min is
// clamped to min.
func NewPoliteness(min, max time.Duration) *Politeness {
	if max < min {
		max = min
	}
	return &Politeness{min: min, max: max}
}

// Wait blocks for the randomized delay or until ctx is cancelled.
func (p *Politeness) Wait(ctx context.Context) error {
	delay := p.min
	if p.max > p.min {
		delay += time.Duration(rand.Float64() * float64(p.max-p.min))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
