package chiptone_test

import (
	"errors"
	"math"
	"testing"

	"github.com/vsariola/chiptone"
)

func TestNewSequencerGridBounds(t *testing.T) {
	for _, steps := range []int{chiptone.MinSteps, 16, chiptone.MaxSteps} {
		if _, err := chiptone.NewSequencerGrid(steps); err != nil {
			t.Fatalf("NewSequencerGrid(%d) failed: %v", steps, err)
		}
	}
	for _, steps := range []int{0, chiptone.MinSteps - 1, chiptone.MaxSteps + 1} {
		if _, err := chiptone.NewSequencerGrid(steps); !errors.Is(err, chiptone.ErrInvalidParameter) {
			t.Fatalf("NewSequencerGrid(%d) should fail with ErrInvalidParameter, got %v", steps, err)
		}
	}
}

func TestSequencerGridTiming(t *testing.T) {
	g, err := chiptone.NewSequencerGrid(16)
	if err != nil {
		t.Fatalf("NewSequencerGrid failed: %v", err)
	}
	if got := g.SlotSeconds(); math.Abs(got-0.125) > 1e-12 {
		t.Fatalf("SlotSeconds at 120 BPM = %v, want 0.125", got)
	}
	if got := g.LoopSeconds(); math.Abs(got-2) > 1e-12 {
		t.Fatalf("LoopSeconds = %v, want 2", got)
	}
}

func TestSequencerGridCells(t *testing.T) {
	g, _ := chiptone.NewSequencerGrid(8)
	if err := g.Set("E4", 3, true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := g.Set("C5", 3, true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := g.Set("C4", 0, true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !g.IsActive("E4", 3) {
		t.Fatalf("cell should be active")
	}
	notes := g.NotesAt(3)
	if len(notes) != 2 || notes[0] != "C5" || notes[1] != "E4" {
		t.Fatalf("NotesAt(3) = %v, want [C5 E4]", notes)
	}
	if g.Cells[0] != (chiptone.Cell{Pitch: "C4", Step: 0}) {
		t.Fatalf("cells should be sorted by step, got %v", g.Cells)
	}
	active, err := g.Toggle("E4", 3)
	if err != nil || active {
		t.Fatalf("Toggle should turn the cell off, got %v %v", active, err)
	}
	if err := g.Set("E4", 8, true); !errors.Is(err, chiptone.ErrInvalidParameter) {
		t.Fatalf("step outside the grid should fail, got %v", err)
	}
	if err := g.Set("C6", 0, true); !errors.Is(err, chiptone.ErrInvalidParameter) {
		t.Fatalf("pitch outside the range should fail, got %v", err)
	}
	g.Clear()
	if len(g.Cells) != 0 {
		t.Fatalf("Clear left cells: %v", g.Cells)
	}
}

func TestSequencerGridSetSteps(t *testing.T) {
	g, _ := chiptone.NewSequencerGrid(16)
	g.Set("C4", 2, true)
	g.Set("C4", 12, true)
	if err := g.SetSteps(8); err != nil {
		t.Fatalf("SetSteps failed: %v", err)
	}
	if g.IsActive("C4", 12) || !g.IsActive("C4", 2) {
		t.Fatalf("SetSteps should drop only the cells past the end: %v", g.Cells)
	}
	if err := g.SetSteps(chiptone.MaxSteps + 1); !errors.Is(err, chiptone.ErrInvalidParameter) {
		t.Fatalf("SetSteps over the bound should fail, got %v", err)
	}
	if g.Steps != 8 {
		t.Fatalf("failed SetSteps changed the grid to %d steps", g.Steps)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestSequencerGridToneFor(t *testing.T) {
	g, _ := chiptone.NewSequencerGrid(16)
	g.Waveform = chiptone.Triangle
	p, err := g.ToneFor("A4")
	if err != nil {
		t.Fatalf("ToneFor failed: %v", err)
	}
	if p.StartFrequency != 440 || p.EndFrequency != 440 || p.Waveform != chiptone.Triangle || p.Duration != g.SlotSeconds() || p.Gain != chiptone.DefaultGain {
		t.Fatalf("unexpected tone %+v", p)
	}
}

func TestUnmarshalGridDefaults(t *testing.T) {
	grid, err := chiptone.UnmarshalGrid([]byte(`bpm: 100
waveform: square
cells:
  - {pitch: E4, step: 5}
  - {pitch: C5, step: 1}
`))
	if err != nil {
		t.Fatalf("UnmarshalGrid failed: %v", err)
	}
	if grid.Steps != chiptone.DefaultSequencerSteps || len(grid.Pitches) != 13 {
		t.Fatalf("defaults not applied: %+v", grid)
	}
	if grid.Cells[0].Step != 1 {
		t.Fatalf("cells not sorted: %v", grid.Cells)
	}
	if err := grid.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestSequencerGridValidateRejectsBadGain(t *testing.T) {
	for _, gain := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		g, _ := chiptone.NewSequencerGrid(16)
		g.Gain = gain
		if err := g.Validate(); !errors.Is(err, chiptone.ErrInvalidParameter) {
			t.Fatalf("gain %v: expected ErrInvalidParameter, got %v", gain, err)
		}
	}
}

func TestSequencerGridValidateRejectsDuplicatePitches(t *testing.T) {
	for _, pitches := range [][]chiptone.Note{{"C4", "C4"}, {"D#4", "C4", "Eb4"}} {
		g, _ := chiptone.NewSequencerGrid(16)
		g.Pitches = pitches
		g.Cells = []chiptone.Cell{{Pitch: "C4", Step: 0}}
		if err := g.Validate(); !errors.Is(err, chiptone.ErrInvalidParameter) {
			t.Fatalf("pitches %v: expected ErrInvalidParameter, got %v", pitches, err)
		}
	}
}
