package chiptone

import (
	"cmp"
	"fmt"
	"slices"
)

const (
	MinSteps = 4
	MaxSteps = 100

	DefaultSequencerSteps = 16
	DefaultSequencerBPM   = 120
)

type (
	// SequencerGrid is a step sequencer pattern: a set of active (pitch, step)
	// cells over a fixed pitch range. Instrument and tempo belong to the
	// whole grid, not to single cells.
	SequencerGrid struct {
		BPM          int
		StepsPerBeat int `yaml:",omitempty" json:",omitempty"` // zero means DefaultSubdivision
		Steps        int
		Waveform     Waveform
		Gain         float64 `yaml:",omitempty" json:",omitempty"`
		Pitches      []Note  `yaml:",flow"`
		Cells        []Cell  `yaml:",omitempty" json:",omitempty"`
	}

	// Cell addresses one note of a SequencerGrid.
	Cell struct {
		Pitch Note
		Step  int
	}
)

// DefaultPitches returns the pitch rows of a new grid: one chromatic octave,
// C5 on top down to C4.
func DefaultPitches() []Note {
	ret := make([]Note, 0, 13)
	for key := 72; key >= 60; key-- {
		ret = append(ret, NoteFromKey(key))
	}
	return ret
}

// NewSequencerGrid returns an empty grid with the default pitch range, tempo
// and instrument.
func NewSequencerGrid(steps int) (*SequencerGrid, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	return &SequencerGrid{
		BPM:      DefaultSequencerBPM,
		Steps:    steps,
		Waveform: Square,
		Pitches:  DefaultPitches(),
	}, nil
}

// ValidateSteps checks the step count bound. Out of range values are errors,
// never clamped: callers size their grids from this bound.
func ValidateSteps(steps int) error {
	if steps < MinSteps || steps > MaxSteps {
		return paramError("steps", steps, fmt.Sprintf("should be in %d..%d", MinSteps, MaxSteps))
	}
	return nil
}

func (g *SequencerGrid) stepsPerBeat() int {
	if g.StepsPerBeat == 0 {
		return DefaultSubdivision
	}
	return g.StepsPerBeat
}

// SlotSeconds returns the duration of one step.
func (g *SequencerGrid) SlotSeconds() float64 {
	if g.BPM <= 0 {
		return 0
	}
	return 60 / float64(g.BPM) / float64(g.stepsPerBeat())
}

// LoopSeconds returns the duration of one pass over all the steps.
func (g *SequencerGrid) LoopSeconds() float64 {
	return float64(g.Steps) * g.SlotSeconds()
}

// SetSteps changes the number of steps, dropping cells that no longer fit.
func (g *SequencerGrid) SetSteps(steps int) error {
	if err := ValidateSteps(steps); err != nil {
		return err
	}
	g.Steps = steps
	g.Cells = slices.DeleteFunc(g.Cells, func(c Cell) bool { return c.Step >= steps })
	return nil
}

func (g *SequencerGrid) checkCell(c Cell) error {
	if c.Step < 0 || c.Step >= g.Steps {
		return paramError("step", c.Step, fmt.Sprintf("grid has %d steps", g.Steps))
	}
	if g.pitchRow(c.Pitch) < 0 {
		return paramError("pitch", string(c.Pitch), "not in the pitch range of the grid")
	}
	return nil
}

func (g *SequencerGrid) pitchRow(n Note) int {
	return slices.Index(g.Pitches, n)
}

// IsActive reports whether the cell is on.
func (g *SequencerGrid) IsActive(pitch Note, step int) bool {
	return slices.Contains(g.Cells, Cell{Pitch: pitch, Step: step})
}

// Set turns a cell on or off.
func (g *SequencerGrid) Set(pitch Note, step int, active bool) error {
	c := Cell{Pitch: pitch, Step: step}
	if err := g.checkCell(c); err != nil {
		return err
	}
	i := slices.Index(g.Cells, c)
	switch {
	case active && i < 0:
		g.Cells = append(g.Cells, c)
		g.sortCells()
	case !active && i >= 0:
		g.Cells = slices.Delete(g.Cells, i, i+1)
	}
	return nil
}

// Toggle flips a cell and returns its new state.
func (g *SequencerGrid) Toggle(pitch Note, step int) (bool, error) {
	active := !g.IsActive(pitch, step)
	if err := g.Set(pitch, step, active); err != nil {
		return false, err
	}
	return active, nil
}

// Clear turns every cell off.
func (g *SequencerGrid) Clear() {
	g.Cells = g.Cells[:0]
}

// sortCells keeps cells ordered by step, then by pitch row.
func (g *SequencerGrid) sortCells() {
	slices.SortFunc(g.Cells, func(a, b Cell) int {
		if c := cmp.Compare(a.Step, b.Step); c != 0 {
			return c
		}
		return cmp.Compare(g.pitchRow(a.Pitch), g.pitchRow(b.Pitch))
	})
}

// NotesAt returns the active pitches at a step, top row first.
func (g *SequencerGrid) NotesAt(step int) []Note {
	var ret []Note
	for _, p := range g.Pitches {
		if g.IsActive(p, step) {
			ret = append(ret, p)
		}
	}
	return ret
}

// ToneFor returns the tone parameters of one active note, lasting one step.
func (g *SequencerGrid) ToneFor(pitch Note) (SoundEffectParameters, error) {
	freq, err := pitch.Frequency()
	if err != nil {
		return SoundEffectParameters{}, err
	}
	gain := g.Gain
	if gain == 0 {
		gain = DefaultGain
	}
	return SoundEffectParameters{
		Waveform:       g.Waveform,
		StartFrequency: freq,
		EndFrequency:   freq,
		Duration:       g.SlotSeconds(),
		Gain:           gain,
	}, nil
}

// Validate checks tempo, step count, gain, that the pitch rows are distinct
// notes of the table and that every cell is inside the grid.
func (g *SequencerGrid) Validate() error {
	if err := ValidateBPM(g.BPM); err != nil {
		return err
	}
	if err := ValidateSteps(g.Steps); err != nil {
		return err
	}
	if g.StepsPerBeat < 0 || g.StepsPerBeat > MaxSubdivision {
		return paramError("stepsPerBeat", g.StepsPerBeat, fmt.Sprintf("should be in 1..%d", MaxSubdivision))
	}
	if g.Waveform < Sine || g.Waveform > Noise {
		return paramError("waveform", int(g.Waveform), "unknown waveform")
	}
	if err := validateGain(g.Gain); err != nil {
		return err
	}
	if len(g.Pitches) == 0 {
		return paramError("pitches", nil, "grid has no pitch rows")
	}
	seen := make(map[int]bool, len(g.Pitches))
	for _, p := range g.Pitches {
		key, err := p.Key()
		if err != nil {
			return err
		}
		if seen[key] {
			return paramError("pitches", p, "duplicate pitch row")
		}
		seen[key] = true
	}
	for _, c := range g.Cells {
		if err := g.checkCell(c); err != nil {
			return err
		}
	}
	return nil
}

// Copy makes a deep copy of a SequencerGrid.
func (g *SequencerGrid) Copy() SequencerGrid {
	ret := *g
	ret.Pitches = slices.Clone(g.Pitches)
	ret.Cells = slices.Clone(g.Cells)
	return ret
}
