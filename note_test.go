package chiptone_test

import (
	"errors"
	"math"
	"testing"

	"github.com/vsariola/chiptone"
)

func TestNoteFrequencies(t *testing.T) {
	for _, c := range []struct {
		note chiptone.Note
		want float64
	}{
		{"A4", 440},
		{"A3", 220},
		{"A5", 880},
		{"C4", 261.6256},
		{"C#5", 554.3653},
		{"Db5", 554.3653},
		{"a4", 440},
	} {
		got, err := c.note.Frequency()
		if err != nil {
			t.Fatalf("Frequency(%v) failed: %v", c.note, err)
		}
		if math.Abs(got-c.want) > 1e-3 {
			t.Fatalf("Frequency(%v) = %v, want %v", c.note, got, c.want)
		}
	}
	if f, _ := chiptone.Note("A4").Frequency(); f != 440 {
		t.Fatalf("A4 should be exactly 440 Hz, got %v", f)
	}
}

func TestNoteTableIsMonotonic(t *testing.T) {
	names := chiptone.NoteNames()
	if len(names) != 9*12 {
		t.Fatalf("expected %d notes, got %d", 9*12, len(names))
	}
	if names[0] != "C0" || names[len(names)-1] != "B8" {
		t.Fatalf("table should span C0..B8, got %v..%v", names[0], names[len(names)-1])
	}
	prev := 0.0
	for _, n := range names {
		f, err := n.Frequency()
		if err != nil {
			t.Fatalf("Frequency(%v) failed: %v", n, err)
		}
		if f <= prev {
			t.Fatalf("frequency of %v (%v) is not above the previous note (%v)", n, f, prev)
		}
		prev = f
	}
}

func TestInvalidNotes(t *testing.T) {
	for _, n := range []chiptone.Note{chiptone.Rest, "H4", "C9", "A", "Cx4", "C-1"} {
		if _, err := n.Frequency(); !errors.Is(err, chiptone.ErrInvalidParameter) {
			t.Fatalf("Frequency(%q) should fail with ErrInvalidParameter, got %v", n, err)
		}
	}
}

func TestNoteKeyRoundTrip(t *testing.T) {
	for key := 12; key < 9*12+12; key++ {
		n := chiptone.NoteFromKey(key)
		got, err := n.Key()
		if err != nil {
			t.Fatalf("Key(%v) failed: %v", n, err)
		}
		if got != key {
			t.Fatalf("Key(%v) = %v, want %v", n, got, key)
		}
	}
}
