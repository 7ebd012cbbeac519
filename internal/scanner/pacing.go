package scanner

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/Skytheredhead/outlookscrape/internal/browser"
)

// Pacer injects human-like pauses and pointer movement between page
// interactions. Every call is best-effort and must never affect
// correctness; tests swap in NopPacer for determinism.
type Pacer interface {
	// Pause sleeps roughly 1-2 seconds.
	Pause(ctx context.Context)
	// ShortPause sleeps roughly 0.5-1 seconds.
	ShortPause(ctx context.Context)
	// Wander usually dispatches a multi-point synthetic pointer path.
	Wander(ctx context.Context, b browser.Browser)
}

// wanderProbability is how often Wander actually moves the pointer.
const wanderProbability = 0.85

type humanPacer struct{}

// NewHumanPacer returns the production pacing policy: randomized delays
// and occasional pointer wandering to resemble human browsing pacing.
func NewHumanPacer() Pacer {
	return humanPacer{}
}

func (humanPacer) Pause(ctx context.Context) {
	sleep(ctx, time.Second, 2*time.Second)
}

func (humanPacer) ShortPause(ctx context.Context) {
	sleep(ctx, 500*time.Millisecond, time.Second)
}

func (humanPacer) Wander(ctx context.Context, b browser.Browser) {
	if rand.Float64() >= wanderProbability {
		return
	}
	points := 3 + rand.IntN(4)
	for i := 0; i < points; i++ {
		x := 100 + rand.Float64()*1200
		y := 100 + rand.Float64()*700
		if err := b.MoveMouse(ctx, x, y); err != nil {
			return
		}
		sleep(ctx, 50*time.Millisecond, 200*time.Millisecond)
	}
}

func sleep(ctx context.Context, min, max time.Duration) {
	d := min + rand.N(max-min)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type nopPacer struct{}

// NopPacer returns a pacing policy that does nothing.
func NopPacer() Pacer {
	return nopPacer{}
}

func (nopPacer) Pause(context.Context)                   {}
func (nopPacer) ShortPause(context.Context)              {}
func (nopPacer) Wander(context.Context, browser.Browser) {}
