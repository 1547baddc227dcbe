// Package sampler decides which camera frames are worth recognizing.
//
// A camera delivers far more frames than text recognition can process. The
// Sampler admits a frame only when no other frame is being processed and the
// minimum interval since the last admitted frame has elapsed; everything else
// is dropped. Dropping is the normal case, not an error.
package sampler

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/plate-gate/internal/timeutil"
)

// DefaultInterval is the minimum spacing between admitted frames.
const DefaultInterval = 250 * time.Millisecond

// Frame is one image delivered by a frame source.
type Frame struct {
	Seq   uint64
	Image image.Image
	At    time.Time
}

// Handler processes an admitted frame.
type Handler func(ctx context.Context, f Frame)

// Stats counts frames seen by a Sampler since the last Reset.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
}

// Sampler admits at most one frame at a time, at most once per interval.
// It is safe for concurrent use.
type Sampler struct {
	interval time.Duration
	clock    timeutil.Clock
	log      zerolog.Logger

	inFlight atomic.Bool

	mu           sync.Mutex
	lastAccepted time.Time
	accepted     uint64
	dropped      uint64
}

// New creates a Sampler. A non-positive interval means DefaultInterval.
func New(interval time.Duration, clock timeutil.Clock, log zerolog.Logger) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Sampler{
		interval: interval,
		clock:    clock,
		log:      log.With().Str("component", "sampler").Logger(),
	}
}

// Interval returns the minimum spacing between admitted frames.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Accept reports whether f should be processed. On true the sampler is
// marked in flight and the caller must call Release when done.
func (s *Sampler) Accept(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight.Load() {
		s.dropped++
		return false
	}
	now := s.clock.Now()
	if !s.lastAccepted.IsZero() && now.Sub(s.lastAccepted) < s.interval {
		s.dropped++
		return false
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.dropped++
		return false
	}

	s.lastAccepted = now
	s.accepted++
	s.log.Trace().Uint64("seq", f.Seq).Msg("Frame accepted")
	return true
}

// Release clears the in-flight mark. It is safe to call when nothing is in
// flight.
func (s *Sampler) Release() {
	s.inFlight.Store(false)
}

// InFlight reports whether a frame is being processed.
func (s *Sampler) InFlight() bool {
	return s.inFlight.Load()
}

// Reset clears the interval history and the counters. The in-flight mark
// stays with the frame that holds it and is cleared by that frame's Release,
// so a frame still being processed keeps later frames out.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastAccepted = time.Time{}
	s.accepted = 0
	s.dropped = 0
}

// Stats returns the frame counters.
func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Accepted: s.accepted, Dropped: s.dropped}
}

// Run reads frames until the channel is closed or ctx is done, handing each
// admitted frame to handle on its own goroutine. The in-flight mark is always
// released when handle returns, including when it panics. Run waits for the
// last handler before returning.
func (s *Sampler) Run(ctx context.Context, frames <-chan Frame, handle Handler) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if !s.Accept(f) {
				continue
			}
			wg.Add(1)
			go func(f Frame) {
				defer wg.Done()
				defer s.Release()
				defer func() {
					if r := recover(); r != nil {
						s.log.Error().Uint64("seq", f.Seq).Str("panic", fmt.Sprint(r)).Msg("Frame handler panicked")
					}
				}()
				handle(ctx, f)
			}(f)
		}
	}
}
