package player

import (
	"context"
	"math"
	"sync"
)

// Outcome tells how a session ended.
type Outcome int

const (
	Running   Outcome = iota // not ended yet
	Completed                // a song reached its end
	Cancelled                // stopped, or replaced by a new session
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "running"
	}
}

// Session is one playback of a Pattern, from Engine.Start until it completes
// or is cancelled. Its schedule is absolute: step k of the session is due at
// origin + k*slot on the mixer clock, so timer jitter never accumulates.
type Session struct {
	pattern    Pattern
	origin     float64 // mixer time of the first scheduled step
	firstStep  int     // pattern step the session (re)started from
	next       int     // steps scheduled since origin
	onComplete func(Outcome)

	cancel    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	outcome   Outcome // written once before done is closed
}

func newSession(p Pattern, now float64, firstStep int, onComplete func(Outcome)) *Session {
	return &Session{
		pattern:    p,
		origin:     now,
		firstStep:  firstStep,
		onComplete: onComplete,
		cancel:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outcome returns Running until the session ends, then how it ended.
func (s *Session) Outcome() Outcome {
	select {
	case <-s.done:
		return s.outcome
	default:
		return Running
	}
}

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		return s.outcome, nil
	case <-ctx.Done():
		return Running, ctx.Err()
	}
}

// end records the outcome and releases waiters. Only the first call has an
// effect; it returns false for the later ones.
func (s *Session) end(o Outcome) bool {
	ended := false
	s.closeOnce.Do(func() {
		s.outcome = o
		close(s.cancel)
		close(s.done)
		ended = true
	})
	return ended
}

// due returns the mixer time of the n:th step since origin.
func (s *Session) due(n int) float64 {
	return s.origin + float64(n)*s.pattern.SlotSeconds()
}

// stepAt returns the pattern step sounding at mixer time now.
func (s *Session) stepAt(now float64) int {
	total := s.pattern.NumSteps()
	slot := s.pattern.SlotSeconds()
	if total == 0 || slot <= 0 {
		return 0
	}
	n := int(math.Floor((now - s.origin) / slot))
	n = max(n, 0)
	if s.pattern.Loops() {
		return (s.firstStep + n) % total
	}
	return min(s.firstStep+n, total-1)
}

// restart moves the schedule origin to now, continuing from step.
func (s *Session) restart(p Pattern, now float64, step int) {
	s.pattern = p
	s.origin = now
	s.firstStep = step
	s.next = 0
}
