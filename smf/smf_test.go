package smf_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/vsariola/chiptone"
	chipsmf "github.com/vsariola/chiptone/smf"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestSongHeader(t *testing.T) {
	song := &chiptone.Song{
		BPM:      150,
		Waveform: chiptone.Square,
		Tracks: []chiptone.Track{
			{Name: "lead", Slots: []chiptone.Note{"C4", "", "E4", "G4"}},
			{Name: "bass", Slots: []chiptone.Note{"C2", "", "", ""}},
		},
	}
	data, err := chipsmf.Song(song)
	if err != nil {
		t.Fatalf("smf.Song failed: %v", err)
	}
	if string(data[:4]) != "MThd" {
		t.Fatalf("missing MThd chunk: %q", data[:4])
	}
	be := binary.BigEndian
	if format := be.Uint16(data[8:]); format != 1 {
		t.Fatalf("format = %d, want 1", format)
	}
	if tracks := be.Uint16(data[10:]); tracks != 3 {
		t.Fatalf("tracks = %d, want 3 (tempo + 2)", tracks)
	}
	if division := be.Uint16(data[12:]); division != 960 {
		t.Fatalf("division = %d, want 960", division)
	}
}

func TestSongNotes(t *testing.T) {
	song := &chiptone.Song{
		BPM: 120,
		Tracks: []chiptone.Track{
			{Slots: []chiptone.Note{"A4", "", "A5", ""}},
		},
	}
	data, err := chipsmf.Song(song)
	if err != nil {
		t.Fatalf("smf.Song failed: %v", err)
	}
	file, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("could not read back the midi file: %v", err)
	}
	var bpm float64
	for _, ev := range file.Tracks[0] {
		ev.Message.GetMetaTempo(&bpm)
	}
	if math.Abs(bpm-120) > 1e-6 {
		t.Fatalf("tempo = %v, want 120", bpm)
	}
	var keys []uint8
	var starts []uint32
	var abs uint32
	for _, ev := range file.Tracks[1] {
		abs += ev.Delta
		var ch, key, vel uint8
		if midi.Message(ev.Message).GetNoteOn(&ch, &key, &vel) && vel > 0 {
			keys = append(keys, key)
			starts = append(starts, abs)
		}
	}
	if len(keys) != 2 || keys[0] != 69 || keys[1] != 81 {
		t.Fatalf("note keys = %v, want [69 81]", keys)
	}
	// sixteenth notes at 960 ticks per quarter
	if starts[0] != 0 || starts[1] != 2*240 {
		t.Fatalf("note starts = %v, want [0 480]", starts)
	}
}

func TestSongOddSubdivisionStaysOnBeat(t *testing.T) {
	slots := make([]chiptone.Note, 15)
	for i := range slots {
		slots[i] = "C4"
	}
	song := &chiptone.Song{BPM: 120, Subdivision: 7, Tracks: []chiptone.Track{{Slots: slots}}}
	data, err := chipsmf.Song(song)
	if err != nil {
		t.Fatalf("smf.Song failed: %v", err)
	}
	file, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("could not read back the midi file: %v", err)
	}
	var starts []uint32
	var abs uint32
	for _, ev := range file.Tracks[1] {
		abs += ev.Delta
		var ch, key, vel uint8
		if midi.Message(ev.Message).GetNoteOn(&ch, &key, &vel) && vel > 0 {
			starts = append(starts, abs)
		}
	}
	if len(starts) != len(slots) {
		t.Fatalf("note ons = %d, want %d", len(starts), len(slots))
	}
	for i, got := range starts {
		if want := uint32(math.Round(float64(i) * 960 / 7)); got != want {
			t.Fatalf("note %d starts at tick %d, want %d", i, got, want)
		}
	}
	if starts[7] != 960 || starts[14] != 1920 {
		t.Fatalf("beats start at ticks %d and %d, want 960 and 1920", starts[7], starts[14])
	}
}

func TestGrid(t *testing.T) {
	grid, _ := chiptone.NewSequencerGrid(8)
	grid.Set("C4", 0, true)
	grid.Set("G4", 0, true)
	grid.Set("E4", 4, true)
	data, err := chipsmf.Grid(grid, 2)
	if err != nil {
		t.Fatalf("smf.Grid failed: %v", err)
	}
	file, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("could not read back the midi file: %v", err)
	}
	if len(file.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(file.Tracks))
	}
	ons := 0
	for _, ev := range file.Tracks[1] {
		var ch, key, vel uint8
		if midi.Message(ev.Message).GetNoteOn(&ch, &key, &vel) && vel > 0 {
			ons++
		}
	}
	if ons != 6 {
		t.Fatalf("note ons = %d, want 6", ons)
	}
	if _, err := chipsmf.Grid(grid, 0); !errors.Is(err, chiptone.ErrInvalidParameter) {
		t.Fatalf("zero loops should fail with ErrInvalidParameter, got %v", err)
	}
}

func TestInvalidSong(t *testing.T) {
	song := &chiptone.Song{BPM: 10, Tracks: []chiptone.Track{{Slots: []chiptone.Note{"C4"}}}}
	if _, err := chipsmf.Song(song); !errors.Is(err, chiptone.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}
