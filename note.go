package chiptone

import (
	"fmt"
	"math"
	"strconv"
)

// Note is a pitch name such as "A4", "C#5" or "Eb3". The empty Note is a rest.
// Octaves follow scientific pitch notation, so "C4" is middle C and "A4" is
// 440 Hz.
type Note string

// Rest is the empty slot in a track.
const Rest Note = ""

const (
	MinOctave = 0
	MaxOctave = 8
	a4Key     = 69 // MIDI key number of A4
)

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var letterSemitones = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// noteTable is the frequency table: every sharp-spelled note from C0 to B8.
var (
	noteTable map[Note]float64
	noteOrder []Note
)

func init() {
	noteTable = make(map[Note]float64, (MaxOctave-MinOctave+1)*12)
	for key := (MinOctave + 1) * 12; key < (MaxOctave+2)*12; key++ {
		n := NoteFromKey(key)
		noteTable[n] = KeyFrequency(key)
		noteOrder = append(noteOrder, n)
	}
}

// KeyFrequency returns the equal temperament frequency of a MIDI key number.
// Key 69 returns exactly 440.
func KeyFrequency(key int) float64 {
	return 440 * math.Pow(2, float64(key-a4Key)/12)
}

// NoteFromKey returns the sharp-spelled name of a MIDI key number.
func NoteFromKey(key int) Note {
	octave := key/12 - 1
	return Note(sharpNames[key%12] + strconv.Itoa(octave))
}

// NoteNames returns all the notes of the frequency table, from lowest to
// highest.
func NoteNames() []Note {
	ret := make([]Note, len(noteOrder))
	copy(ret, noteOrder)
	return ret
}

// IsRest reports whether the slot holds no note.
func (n Note) IsRest() bool {
	return n == Rest
}

// Key parses the note name and returns its MIDI key number.
func (n Note) Key() (int, error) {
	s := string(n)
	if len(s) < 2 {
		return 0, paramError("note", s, "expected a name like A4 or C#5")
	}
	semitone, ok := letterSemitones[upper(s[0])]
	if !ok {
		return 0, paramError("note", s, "unknown note letter")
	}
	rest := s[1:]
	switch rest[0] {
	case '#':
		semitone++
		rest = rest[1:]
	case 'b':
		semitone--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, paramError("note", s, "octave is not a number")
	}
	key := (octave+1)*12 + semitone
	if key < (MinOctave+1)*12 || key >= (MaxOctave+2)*12 {
		return 0, paramError("note", s, fmt.Sprintf("outside octaves %d..%d", MinOctave, MaxOctave))
	}
	return key, nil
}

// Frequency looks the note up in the frequency table. Flat spellings resolve
// to their sharp equivalents. Rests and unknown names are errors.
func (n Note) Frequency() (float64, error) {
	if f, ok := noteTable[n]; ok {
		return f, nil
	}
	if n.IsRest() {
		return 0, paramError("note", nil, "a rest has no frequency")
	}
	key, err := n.Key()
	if err != nil {
		return 0, err
	}
	return noteTable[NoteFromKey(key)], nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
