package scraper

import (
	"context"
	"math/rand/v2"
	"time"

	"deeppoint-scraper/internal/config"
)

// Pacer suspends the session between steps. Pauses double as rate
// limiting and as a stand-in for render readiness, which the target
// never signals.
type Pacer interface {
	// Pause blocks for a duration drawn from iv, or until ctx is done.
	Pause(ctx context.Context, iv config.Interval) error
}

// RandomPacer draws pause lengths uniformly from each interval.
type RandomPacer struct{}

// NewRandomPacer returns the production pacer.
func NewRandomPacer() *RandomPacer {
	return &RandomPacer{}
}

// Pause implements Pacer.
func (RandomPacer) Pause(ctx context.Context, iv config.Interval) error {
	d := Draw(iv)
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

// Draw picks a duration uniformly from [iv.Min, iv.Max].
func Draw(iv config.Interval) time.Duration {
	if iv.Max <= iv.Min {
		return iv.Min
	}
	return iv.Min + time.Duration(rand.Int64N(int64(iv.Max-iv.Min)+1))
}
