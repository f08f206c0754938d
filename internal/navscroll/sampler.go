package navscroll

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the sampling period.
const DefaultInterval = 250 * time.Millisecond

// Viewport reports the current viewport and document heights.
type Viewport func() (viewportHeight, documentHeight float64)

// Sampler rate-limits classification: scroll events only record the latest
// position, and a periodic tick classifies it.
type Sampler struct {
	latest    atomic.Uint64
	didScroll atomic.Bool

	mu    sync.Mutex
	state State
}

// NewSampler creates a Sampler owning state.
func NewSampler(state State) *Sampler {
	return &Sampler{state: state}
}

// Record stores the latest scroll position. It is safe to call from any goroutine.
func (s *Sampler) Record(scrollTop float64) {
	s.latest.Store(math.Float64bits(scrollTop))
	s.didScroll.Store(true)
}

// State returns a copy of the current state.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run samples every interval until ctx is done. Ticks without a recorded scroll are
// ignored; otherwise only the most recent position is classified, and apply is called
// for every decision other than NoChange.
func (s *Sampler) Run(ctx context.Context, interval time.Duration, viewport Viewport, apply func(Decision)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d, ok := s.sample(viewport); ok {
				apply(d)
			}
		}
	}
}

func (s *Sampler) sample(viewport Viewport) (Decision, bool) {
	if !s.didScroll.Swap(false) {
		return Decision{}, false
	}
	scrollTop := math.Float64frombits(s.latest.Load())
	vh, dh := viewport()

	s.mu.Lock()
	next, d := Classify(s.state, scrollTop, vh, dh)
	s.state = next
	s.mu.Unlock()

	return d, d.Visibility != NoChange
}
