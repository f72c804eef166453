// Package render computes complete audio buffers offline: songs, sequencer
// grids, single sound effects and effect processing of recorded audio. The
// clock is virtual, so the result depends only on the inputs and repeated
// renders are identical.
package render

import (
	"context"
	"fmt"
	"math"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/chiptone"
	"github.com/vsariola/chiptone/synth"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxRenderSeconds bounds the length of a single render.
	MaxRenderSeconds = 600

	blockFrames = 4096
)

// scheduler puts the tones of one voice (a track, a grid row) on a timeline.
type scheduler func(tl synth.Timeline) error

// Song renders the whole song, numSteps * slotSeconds long, and runs the
// result through chain (which may be nil). Every track is synthesized on its
// own timeline, in parallel, and the tracks are summed in order.
func Song(ctx context.Context, song *chiptone.Song, chain synth.Chain, cfg chiptone.Config) (*chiptone.AudioBuffer, error) {
	if err := song.Validate(); err != nil {
		return nil, fmt.Errorf("render.Song failed: %w", err)
	}
	slot := song.SlotSeconds()
	voices := make([]scheduler, len(song.Tracks))
	for t := range song.Tracks {
		voices[t] = func(tl synth.Timeline) error {
			for step := 0; step < song.NumSteps(); step++ {
				params, ok := song.ToneAt(t, step)
				if !ok {
					continue
				}
				if _, err := synth.GenerateTone(tl, float64(step)*slot, params); err != nil {
					return fmt.Errorf("track %d step %d: %w", t, step, err)
				}
			}
			return nil
		}
	}
	buf, err := renderVoices(ctx, song.TotalSeconds(), voices, cfg)
	if err != nil {
		return nil, fmt.Errorf("render.Song failed: %w", err)
	}
	return finish(ctx, buf, chain)
}

// Grid renders loops passes over a sequencer grid.
func Grid(ctx context.Context, grid *chiptone.SequencerGrid, loops int, chain synth.Chain, cfg chiptone.Config) (*chiptone.AudioBuffer, error) {
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("render.Grid failed: %w", err)
	}
	if loops < 1 {
		return nil, fmt.Errorf("render.Grid failed: %w", &chiptone.ParameterError{Field: "loops", Value: loops, Reason: "should be >= 1"})
	}
	slot := grid.SlotSeconds()
	voices := make([]scheduler, len(grid.Pitches))
	for row, pitch := range grid.Pitches {
		voices[row] = func(tl synth.Timeline) error {
			params, err := grid.ToneFor(pitch)
			if err != nil {
				return err
			}
			for loop := 0; loop < loops; loop++ {
				for step := 0; step < grid.Steps; step++ {
					if !grid.IsActive(pitch, step) {
						continue
					}
					at := float64(loop*grid.Steps+step) * slot
					if _, err := synth.GenerateTone(tl, at, params); err != nil {
						return err
					}
				}
			}
			return nil
		}
	}
	buf, err := renderVoices(ctx, float64(loops)*grid.LoopSeconds(), voices, cfg)
	if err != nil {
		return nil, fmt.Errorf("render.Grid failed: %w", err)
	}
	return finish(ctx, buf, chain)
}

// SoundEffect renders one tone, exactly params.Duration long before the
// chain is applied.
func SoundEffect(ctx context.Context, params chiptone.SoundEffectParameters, chain synth.Chain, cfg chiptone.Config) (*chiptone.AudioBuffer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("render.SoundEffect failed: %w", err)
	}
	voice := func(tl synth.Timeline) error {
		_, err := synth.GenerateTone(tl, 0, params)
		return err
	}
	buf, err := renderVoices(ctx, params.Duration, []scheduler{voice}, cfg)
	if err != nil {
		return nil, fmt.Errorf("render.SoundEffect failed: %w", err)
	}
	return finish(ctx, buf, chain)
}

// Process runs a caller supplied buffer (e.g. a voice recording) through the
// chain. src is not modified.
func Process(ctx context.Context, src *chiptone.AudioBuffer, chain synth.Chain) (*chiptone.AudioBuffer, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("render.Process failed: %w", err)
	}
	return finish(ctx, src, chain)
}

func finish(ctx context.Context, buf *chiptone.AudioBuffer, chain synth.Chain) (*chiptone.AudioBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(chain) > 0 {
		buf = chain.Apply(buf)
	}
	if err := buf.CheckFinite(); err != nil {
		return nil, err
	}
	return buf, nil
}

// renderVoices allocates a buffer of exactly round(seconds * sampleRate)
// frames, renders every voice on a private mixer and sums them in order.
func renderVoices(ctx context.Context, seconds float64, voices []scheduler, cfg chiptone.Config) (*chiptone.AudioBuffer, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(seconds) || seconds < 0 || seconds > MaxRenderSeconds {
		return nil, fmt.Errorf("%w: duration %v s exceeds %v s", chiptone.ErrRenderFailure, seconds, MaxRenderSeconds)
	}
	frames := int(math.Round(seconds * float64(cfg.SampleRate)))
	tracks := make([][]float32, len(voices))
	g, gctx := errgroup.WithContext(ctx)
	for i, schedule := range voices {
		g.Go(func() error {
			mixer := synth.NewMixer(cfg.SampleRate, 1, 1)
			if err := schedule(mixer); err != nil {
				return err
			}
			out := make([]float32, frames)
			for start := 0; start < frames; start += blockFrames {
				if err := gctx.Err(); err != nil {
					return err
				}
				end := min(start+blockFrames, frames)
				mixer.Render([][]float32{out[start:end]})
			}
			tracks[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	buf := chiptone.NewAudioBuffer(cfg.Channels, frames, cfg.SampleRate)
	if frames == 0 {
		return buf, nil
	}
	mono := buf.Channels[0]
	for _, t := range tracks {
		vek32.Add_Inplace(mono, t)
	}
	if cfg.MasterGain != 1 {
		vek32.MulNumber_Inplace(mono, float32(cfg.MasterGain))
	}
	for _, ch := range buf.Channels[1:] {
		copy(ch, mono)
	}
	return buf, nil
}
