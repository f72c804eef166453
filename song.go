// Package chiptone is a procedural audio engine: it turns note tables, songs,
// step sequencer grids and sound effect parameters into audio, either live
// through an AudioContext or offline into an AudioBuffer that can be encoded
// as a 16-bit PCM .wav file.
package chiptone

import (
	"fmt"
)

const (
	MinBPM = 40
	MaxBPM = 240

	// DefaultSubdivision is the number of slots per beat in song playback:
	// sixteenth notes.
	DefaultSubdivision = 4
	MaxSubdivision     = 16

	// DefaultGain is used by songs and tracks that leave Gain at zero.
	DefaultGain = 0.25
)

type (
	// Song is a set of tracks played in parallel. Every track is a list of
	// slots, each slot holding a Note or a Rest, and all tracks have the same
	// number of slots. BPM and Subdivision set the duration of a slot.
	Song struct {
		BPM int

		// Subdivision is the number of slots per beat; zero means
		// DefaultSubdivision.
		Subdivision int `yaml:",omitempty" json:",omitempty"`

		Waveform Waveform
		Gain     float64 `yaml:",omitempty" json:",omitempty"`
		Tracks   []Track
	}

	// Track is one voice of a Song. Waveform and Gain override the song
	// defaults when set.
	Track struct {
		Name     string    `yaml:",omitempty" json:",omitempty"`
		Waveform *Waveform `yaml:",omitempty" json:",omitempty"`
		Gain     float64   `yaml:",omitempty" json:",omitempty"`
		Slots    []Note    `yaml:",flow"`
	}
)

// NumSteps returns the length of the song in slots. Validate guarantees all
// tracks agree on it.
func (s *Song) NumSteps() int {
	if len(s.Tracks) == 0 {
		return 0
	}
	return len(s.Tracks[0].Slots)
}

func (s *Song) subdivision() int {
	if s.Subdivision == 0 {
		return DefaultSubdivision
	}
	return s.Subdivision
}

// SlotSeconds returns 60 / BPM / Subdivision, or 0 if BPM is not set.
func (s *Song) SlotSeconds() float64 {
	if s.BPM <= 0 {
		return 0
	}
	return 60 / float64(s.BPM) / float64(s.subdivision())
}

// TotalSeconds returns the nominal length of the song.
func (s *Song) TotalSeconds() float64 {
	return float64(s.NumSteps()) * s.SlotSeconds()
}

// SetNote puts a note (or a Rest) into a slot. The track and the step must
// already exist; use Resize to change the length of the song.
func (s *Song) SetNote(track, step int, note Note) error {
	if track < 0 || track >= len(s.Tracks) {
		return paramError("track", track, fmt.Sprintf("song has %d tracks", len(s.Tracks)))
	}
	slots := s.Tracks[track].Slots
	if step < 0 || step >= len(slots) {
		return paramError("step", step, fmt.Sprintf("track has %d steps", len(slots)))
	}
	if !note.IsRest() {
		if _, err := note.Frequency(); err != nil {
			return err
		}
	}
	slots[step] = note
	return nil
}

// Resize sets the number of slots of every track, padding with rests or
// truncating, so the tracks keep equal lengths.
func (s *Song) Resize(steps int) error {
	if steps < 0 {
		return paramError("steps", steps, "should be >= 0")
	}
	for i := range s.Tracks {
		slots := s.Tracks[i].Slots
		if len(slots) >= steps {
			s.Tracks[i].Slots = slots[:steps]
			continue
		}
		s.Tracks[i].Slots = append(slots, make([]Note, steps-len(slots))...)
	}
	return nil
}

// Validate checks that the song can be played: BPM and subdivision in range,
// finite gains, at least one track, all tracks of equal, non-zero length and
// every note found in the frequency table.
func (s *Song) Validate() error {
	if err := ValidateBPM(s.BPM); err != nil {
		return err
	}
	if s.Subdivision < 0 || s.Subdivision > MaxSubdivision {
		return paramError("subdivision", s.Subdivision, fmt.Sprintf("should be in 1..%d", MaxSubdivision))
	}
	if s.Waveform < Sine || s.Waveform > Noise {
		return paramError("waveform", int(s.Waveform), "unknown waveform")
	}
	if err := validateGain(s.Gain); err != nil {
		return err
	}
	if len(s.Tracks) == 0 {
		return paramError("tracks", nil, "song contains no tracks")
	}
	steps := s.NumSteps()
	for i, t := range s.Tracks {
		if len(t.Slots) != steps {
			return paramError("tracks", i, "track length mismatch")
		}
		if t.Waveform != nil && (*t.Waveform < Sine || *t.Waveform > Noise) {
			return paramError("waveform", int(*t.Waveform), "unknown waveform")
		}
		if err := validateGain(t.Gain); err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
		for _, n := range t.Slots {
			if n.IsRest() {
				continue
			}
			if _, err := n.Frequency(); err != nil {
				return fmt.Errorf("track %d: %w", i, err)
			}
		}
	}
	if steps == 0 {
		return paramError("tracks", nil, "song has no steps")
	}
	return nil
}

// ToneAt returns the tone parameters of the note in the given slot, or false
// if the slot is a rest. The tone lasts one slot.
func (s *Song) ToneAt(track, step int) (SoundEffectParameters, bool) {
	if track < 0 || track >= len(s.Tracks) {
		return SoundEffectParameters{}, false
	}
	t := &s.Tracks[track]
	if step < 0 || step >= len(t.Slots) || t.Slots[step].IsRest() {
		return SoundEffectParameters{}, false
	}
	freq, err := t.Slots[step].Frequency()
	if err != nil {
		return SoundEffectParameters{}, false
	}
	waveform := s.Waveform
	if t.Waveform != nil {
		waveform = *t.Waveform
	}
	gain := s.Gain
	if t.Gain != 0 {
		gain = t.Gain
	}
	if gain == 0 {
		gain = DefaultGain
	}
	return SoundEffectParameters{
		Waveform:       waveform,
		StartFrequency: freq,
		EndFrequency:   freq,
		Duration:       s.SlotSeconds(),
		Gain:           gain,
	}, true
}

// Copy makes a deep copy of a Track.
func (t *Track) Copy() Track {
	slots := make([]Note, len(t.Slots))
	copy(slots, t.Slots)
	ret := Track{Name: t.Name, Gain: t.Gain, Slots: slots}
	if t.Waveform != nil {
		w := *t.Waveform
		ret.Waveform = &w
	}
	return ret
}

// Copy makes a deep copy of a Song.
func (s *Song) Copy() Song {
	tracks := make([]Track, len(s.Tracks))
	for i := range s.Tracks {
		tracks[i] = s.Tracks[i].Copy()
	}
	return Song{BPM: s.BPM, Subdivision: s.Subdivision, Waveform: s.Waveform, Gain: s.Gain, Tracks: tracks}
}

// ValidateBPM checks the tempo bounds shared by songs and sequencer grids.
func ValidateBPM(bpm int) error {
	if bpm < MinBPM || bpm > MaxBPM {
		return paramError("bpm", bpm, fmt.Sprintf("should be in %d..%d", MinBPM, MaxBPM))
	}
	return nil
}
