package player

import (
	"github.com/vsariola/chiptone"
)

type (
	// Pattern is what the scheduler plays: a number of equally long steps,
	// each triggering zero or more tones. Patterns handed to the engine are
	// snapshots; edits reach a playing session through Engine.Update.
	Pattern interface {
		Validate() error
		NumSteps() int
		SlotSeconds() float64
		TonesAt(step int) []chiptone.SoundEffectParameters
		// Loops reports whether playback wraps around at the end instead of
		// completing.
		Loops() bool
		withBPM(bpm int) (Pattern, error)
		withWaveform(w chiptone.Waveform) Pattern
	}

	// SongPattern plays a Song once from start to end.
	SongPattern struct {
		Song chiptone.Song
	}

	// GridPattern loops a SequencerGrid until stopped.
	GridPattern struct {
		Grid chiptone.SequencerGrid
	}
)

// ForSong takes a snapshot of the song.
func ForSong(s *chiptone.Song) *SongPattern {
	return &SongPattern{Song: s.Copy()}
}

// ForGrid takes a snapshot of the grid.
func ForGrid(g *chiptone.SequencerGrid) *GridPattern {
	return &GridPattern{Grid: g.Copy()}
}

func (p *SongPattern) Validate() error { return p.Song.Validate() }
func (p *SongPattern) NumSteps() int { return p.Song.NumSteps() }
func (p *SongPattern) SlotSeconds() float64 { return p.Song.SlotSeconds() }
func (p *SongPattern) Loops() bool { return false }

func (p *SongPattern) TonesAt(step int) []chiptone.SoundEffectParameters {
	var ret []chiptone.SoundEffectParameters
	for t := range p.Song.Tracks {
		if params, ok := p.Song.ToneAt(t, step); ok {
			ret = append(ret, params)
		}
	}
	return ret
}

func (p *SongPattern) withBPM(bpm int) (Pattern, error) {
	if err := chiptone.ValidateBPM(bpm); err != nil {
		return nil, err
	}
	ret := ForSong(&p.Song)
	ret.Song.BPM = bpm
	return ret, nil
}

// withWaveform changes the song waveform; per-track overrides are kept.
func (p *SongPattern) withWaveform(w chiptone.Waveform) Pattern {
	ret := ForSong(&p.Song)
	ret.Song.Waveform = w
	return ret
}

func (p *GridPattern) Validate() error { return p.Grid.Validate() }
func (p *GridPattern) NumSteps() int { return p.Grid.Steps }
func (p *GridPattern) SlotSeconds() float64 { return p.Grid.SlotSeconds() }
func (p *GridPattern) Loops() bool { return true }

func (p *GridPattern) TonesAt(step int) []chiptone.SoundEffectParameters {
	var ret []chiptone.SoundEffectParameters
	for _, n := range p.Grid.NotesAt(step) {
		if params, err := p.Grid.ToneFor(n); err == nil {
			ret = append(ret, params)
		}
	}
	return ret
}

func (p *GridPattern) withBPM(bpm int) (Pattern, error) {
	if err := chiptone.ValidateBPM(bpm); err != nil {
		return nil, err
	}
	ret := ForGrid(&p.Grid)
	ret.Grid.BPM = bpm
	return ret, nil
}

func (p *GridPattern) withWaveform(w chiptone.Waveform) Pattern {
	ret := ForGrid(&p.Grid)
	ret.Grid.Waveform = w
	return ret
}

func (p *GridPattern) withSteps(steps int) (Pattern, error) {
	ret := ForGrid(&p.Grid)
	if err := ret.Grid.SetSteps(steps); err != nil {
		return nil, err
	}
	return ret, nil
}
