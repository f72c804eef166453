// Package player is the real-time scheduler: it turns songs and sequencer
// grids into tones on a live mixer while an audio backend pulls the mixed
// stream. An Engine plays at most one Session at a time.
package player

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vsariola/chiptone"
	"github.com/vsariola/chiptone/synth"
)

type (
	// State of the engine. There is no paused state: stopping forgets the
	// position.
	State int

	// Trigger is one tone put on the mixer by the scheduler.
	Trigger struct {
		Step   int
		At     float64 // mixer time in seconds
		Params chiptone.SoundEffectParameters
	}

	// Engine owns the live mixer and the current playback session.
	Engine struct {
		mu        sync.Mutex
		cfg       chiptone.Config
		mixer     *synth.Mixer
		output    chiptone.CloserWaiter
		session   *Session
		logger    *slog.Logger
		onTrigger func(Trigger)
	}

	// Option configures an Engine.
	Option func(*Engine)

	// StartOption configures one Session.
	StartOption func(*Session)
)

const (
	Idle State = iota
	Playing
)

// StartDelay is the gap between Start and the first step, in seconds.
const StartDelay = 0.02

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTriggerHook calls f for every tone the scheduler triggers. f is called
// with the engine lock held and must not call back into the engine.
func WithTriggerHook(f func(Trigger)) Option {
	return func(e *Engine) { e.onTrigger = f }
}

// OnComplete registers a callback run once when the session ends, with the
// outcome. It runs outside the engine lock.
func OnComplete(f func(Outcome)) StartOption {
	return func(s *Session) { s.onComplete = f }
}

// NewEngine creates an engine. If audio is not nil, the mixer is played on it
// right away and its sample rate and channel count override cfg; otherwise
// the caller drives the mixer clock by reading from Mixer().
func NewEngine(audio chiptone.AudioContext, cfg chiptone.Config, opts ...Option) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if audio != nil {
		cfg.SampleRate = audio.SampleRate()
		cfg.Channels = audio.NumChannels()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewEngine failed: %w", err)
	}
	e := &Engine{
		cfg:    cfg,
		mixer:  synth.NewMixer(cfg.SampleRate, cfg.Channels, cfg.MasterGain),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if audio != nil {
		e.output = audio.Play(e.mixer)
	}
	return e, nil
}

// Mixer returns the live mixer.
func (e *Engine) Mixer() *synth.Mixer {
	return e.mixer
}

// State returns Playing while a session is active.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return Playing
	}
	return Idle
}

// Session returns the active session, or nil when idle.
func (e *Engine) Session() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// CurrentStep returns the pattern step sounding now.
func (e *Engine) CurrentStep() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return 0, false
	}
	return e.session.stepAt(e.mixer.Now()), true
}

// Start begins playing p from its first step. Any session already playing is
// torn down first, silencing its voices and dropping its scheduled ones. An
// invalid pattern is rejected before anything is scheduled and leaves the
// engine idle.
func (e *Engine) Start(p Pattern, opts ...StartOption) (*Session, error) {
	var err error
	if p == nil {
		err = &chiptone.ParameterError{Field: "pattern", Reason: "nothing to play"}
	} else {
		err = p.Validate()
	}
	e.mu.Lock()
	ended := e.teardownLocked()
	if err != nil {
		e.mu.Unlock()
		ended.notify()
		return nil, fmt.Errorf("Start failed: %w", err)
	}
	now := e.mixer.Now()
	s := newSession(p, now+StartDelay, 0, nil)
	for _, o := range opts {
		o(s)
	}
	e.session = s
	e.logger.Info("playback started", "steps", p.NumSteps(), "slotSeconds", p.SlotSeconds(), "loops", p.Loops())
	finished := e.scheduleLocked(s, now)
	e.mu.Unlock()
	ended.notify()
	if finished {
		e.tick(s)
		return s, nil
	}
	go e.run(s)
	return s, nil
}

// Stop ends the current session and silences every sounding voice at once.
// Stopping an idle engine is not an error.
func (e *Engine) Stop() {
	e.mu.Lock()
	ended := e.teardownLocked()
	e.mixer.Silence()
	e.mu.Unlock()
	ended.notify()
}

// Update replaces the pattern of the playing session. Note changes are picked
// up by the next scheduling tick; steps already scheduled keep sounding. A
// change of step count or tempo restarts the session at the current step.
func (e *Engine) Update(p Pattern) error {
	if p == nil {
		return &chiptone.ParameterError{Field: "pattern", Reason: "nothing to play"}
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("Update failed: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	if s == nil {
		return nil
	}
	old := s.pattern
	if p.NumSteps() == old.NumSteps() && p.SlotSeconds() == old.SlotSeconds() && p.Loops() == old.Loops() {
		s.pattern = p
		return nil
	}
	e.restartLocked(s, p)
	return nil
}

// SetBPM changes the tempo of the playing session, restarting it at the
// current step.
func (e *Engine) SetBPM(bpm int) error {
	return e.change(func(p Pattern) (Pattern, error) { return p.withBPM(bpm) })
}

// SetWaveform changes the instrument of the playing session, restarting it at
// the current step.
func (e *Engine) SetWaveform(w chiptone.Waveform) error {
	if w < chiptone.Sine || w > chiptone.Noise {
		return &chiptone.ParameterError{Field: "waveform", Value: int(w), Reason: "unknown waveform"}
	}
	return e.change(func(p Pattern) (Pattern, error) { return p.withWaveform(w), nil })
}

// SetSteps changes the step count of a playing sequencer grid, restarting it
// at the current step (or the first one if the current step was cut off).
func (e *Engine) SetSteps(steps int) error {
	return e.change(func(p Pattern) (Pattern, error) {
		g, ok := p.(*GridPattern)
		if !ok {
			return nil, &chiptone.ParameterError{Field: "steps", Value: steps, Reason: "only sequencer grids have a step count"}
		}
		return g.withSteps(steps)
	})
}

// PlayTone triggers a single sound effect on the live mixer, StartDelay from
// now. It does not touch the current session; Stop silences it along with
// the session voices.
func (e *Engine) PlayTone(params chiptone.SoundEffectParameters) error {
	if _, err := synth.GenerateTone(e.mixer, e.mixer.Now()+StartDelay, params); err != nil {
		return fmt.Errorf("PlayTone failed: %w", err)
	}
	return nil
}

// Close stops playback and closes the audio output.
func (e *Engine) Close() error {
	e.Stop()
	if e.output != nil {
		if err := e.output.Close(); err != nil {
			return fmt.Errorf("could not close audio output: %w", err)
		}
	}
	return nil
}

func (e *Engine) change(f func(Pattern) (Pattern, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	if s == nil {
		return nil
	}
	p, err := f(s.pattern)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	e.restartLocked(s, p)
	return nil
}

func (e *Engine) restartLocked(s *Session, p Pattern) {
	now := e.mixer.Now()
	step := s.stepAt(now)
	if step >= p.NumSteps() {
		step = 0
	}
	e.mixer.Silence()
	s.restart(p, now, step)
	e.logger.Info("playback restarted", "step", step, "steps", p.NumSteps(), "slotSeconds", p.SlotSeconds())
	e.scheduleLocked(s, now)
}

// endedSession carries a finished session out of the lock, so that its
// completion callback runs unlocked.
type endedSession struct {
	s       *Session
	outcome Outcome
}

func (d endedSession) notify() {
	if d.s != nil && d.s.onComplete != nil {
		d.s.onComplete(d.outcome)
	}
}

func (e *Engine) teardownLocked() endedSession {
	s := e.session
	if s == nil {
		return endedSession{}
	}
	e.session = nil
	e.mixer.Silence()
	if !s.end(Cancelled) {
		return endedSession{}
	}
	e.logger.Info("playback stopped")
	return endedSession{s: s, outcome: Cancelled}
}

// scheduleLocked triggers every step due before now + lookahead, in step
// order, at its absolute due time. It returns true once a non-looping
// pattern has played to its end.
func (e *Engine) scheduleLocked(s *Session, now float64) bool {
	total := s.pattern.NumSteps()
	horizon := now + e.cfg.Lookahead.Seconds()
	for {
		abs := s.firstStep + s.next
		if !s.pattern.Loops() && abs >= total {
			return now >= s.due(s.next)
		}
		at := s.due(s.next)
		if at >= horizon {
			return false
		}
		step := abs % total
		for _, params := range s.pattern.TonesAt(step) {
			if _, err := synth.GenerateTone(e.mixer, at, params); err != nil {
				e.logger.Warn("skipping tone", "step", step, "error", err)
				continue
			}
			e.logger.Debug("trigger", "step", step, "at", at)
			if e.onTrigger != nil {
				e.onTrigger(Trigger{Step: step, At: at, Params: params})
			}
		}
		s.next++
	}
}

// tick runs one scheduling pass for s and reports whether s is over.
func (e *Engine) tick(s *Session) bool {
	e.mu.Lock()
	if e.session != s {
		e.mu.Unlock()
		return true
	}
	if !e.scheduleLocked(s, e.mixer.Now()) {
		e.mu.Unlock()
		return false
	}
	e.session = nil
	var ended endedSession
	if s.end(Completed) {
		ended = endedSession{s: s, outcome: Completed}
		e.logger.Info("playback completed")
	}
	e.mu.Unlock()
	ended.notify()
	return true
}

func (e *Engine) run(s *Session) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.cancel:
			return
		case <-ticker.C:
			if e.tick(s) {
				return
			}
		}
	}
}
