// Package smf exports songs and sequencer grids as Standard MIDI Files, so a
// pattern sketched in the engine can be taken to a DAW.
package smf

import (
	"bytes"
	"fmt"
	"math"

	"github.com/vsariola/chiptone"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const ticksPerQuarter = smf.MetricTicks(960)

// General MIDI programs closest to each waveform.
var programs = map[chiptone.Waveform]uint8{
	chiptone.Sine:     73,  // Flute
	chiptone.Square:   80,  // Lead 1 (square)
	chiptone.Sawtooth: 81,  // Lead 2 (sawtooth)
	chiptone.Triangle: 79,  // Ocarina
	chiptone.Noise:    122, // Seashore
}

// Song writes a format 1 MIDI file with a tempo track and one track per song
// track. Every note lasts one slot.
func Song(song *chiptone.Song) ([]byte, error) {
	if err := song.Validate(); err != nil {
		return nil, fmt.Errorf("smf.Song failed: %w", err)
	}
	file, err := newFile(song.BPM)
	if err != nil {
		return nil, fmt.Errorf("smf.Song failed: %w", err)
	}
	for t, track := range song.Tracks {
		waveform := song.Waveform
		if track.Waveform != nil {
			waveform = *track.Waveform
		}
		gain := song.Gain
		if track.Gain != 0 {
			gain = track.Gain
		}
		name := track.Name
		if name == "" {
			name = fmt.Sprintf("Track %d", t+1)
		}
		steps := make([][]chiptone.Note, len(track.Slots))
		for i, n := range track.Slots {
			if !n.IsRest() {
				steps[i] = []chiptone.Note{n}
			}
		}
		tr, err := noteTrack(name, channel(t), waveform, gain, steps, song.Subdivision)
		if err != nil {
			return nil, fmt.Errorf("smf.Song failed: track %d: %w", t, err)
		}
		if err := file.Add(tr); err != nil {
			return nil, fmt.Errorf("smf.Song failed: %w", err)
		}
	}
	return write(file)
}

// Grid writes loops passes over the grid as a single MIDI track.
func Grid(grid *chiptone.SequencerGrid, loops int) ([]byte, error) {
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("smf.Grid failed: %w", err)
	}
	if loops < 1 {
		return nil, fmt.Errorf("smf.Grid failed: %w", &chiptone.ParameterError{Field: "loops", Value: loops, Reason: "should be >= 1"})
	}
	steps := make([][]chiptone.Note, 0, loops*grid.Steps)
	for l := 0; l < loops; l++ {
		for s := 0; s < grid.Steps; s++ {
			steps = append(steps, grid.NotesAt(s))
		}
	}
	file, err := newFile(grid.BPM)
	if err != nil {
		return nil, fmt.Errorf("smf.Grid failed: %w", err)
	}
	tr, err := noteTrack("Sequencer", 0, grid.Waveform, grid.Gain, steps, grid.StepsPerBeat)
	if err != nil {
		return nil, fmt.Errorf("smf.Grid failed: %w", err)
	}
	if err := file.Add(tr); err != nil {
		return nil, fmt.Errorf("smf.Grid failed: %w", err)
	}
	return write(file)
}

func newFile(bpm int) (*smf.SMF, error) {
	file := smf.New()
	file.TimeFormat = ticksPerQuarter
	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(float64(bpm)))
	tempo.Close(0)
	if err := file.Add(tempo); err != nil {
		return nil, err
	}
	return file, nil
}

// stepTick is the absolute tick where a step starts. Steps are rounded to the
// nearest tick one by one, so subdivisions that do not divide the quarter
// note never drift from the rendered audio.
func stepTick(step, subdivision int) uint32 {
	if subdivision <= 0 {
		subdivision = chiptone.DefaultSubdivision
	}
	return uint32(math.Round(float64(step) * float64(ticksPerQuarter.Ticks4th()) / float64(subdivision)))
}

// noteTrack turns a list of steps, each with the notes starting on it, into
// a track where every note is held for one step.
func noteTrack(name string, ch uint8, waveform chiptone.Waveform, gain float64, steps [][]chiptone.Note, subdivision int) (smf.Track, error) {
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(name))
	tr.Add(0, midi.ProgramChange(ch, programs[waveform]))
	vel := velocity(gain)
	var pos uint32
	for i, notes := range steps {
		if len(notes) == 0 {
			continue
		}
		keys := make([]uint8, len(notes))
		for j, n := range notes {
			key, err := n.Key()
			if err != nil {
				return nil, err
			}
			keys[j] = uint8(key)
		}
		delta := stepTick(i, subdivision) - pos
		for _, k := range keys {
			tr.Add(delta, midi.NoteOn(ch, k, vel))
			delta = 0
		}
		pos = stepTick(i+1, subdivision)
		delta = pos - stepTick(i, subdivision)
		for _, k := range keys {
			tr.Add(delta, midi.NoteOff(ch, k))
			delta = 0
		}
	}
	tr.Close(stepTick(len(steps), subdivision) - pos)
	return tr, nil
}

// velocity maps a linear gain to a MIDI velocity, perceptually: gain 0.25
// is velocity 64.
func velocity(gain float64) uint8 {
	if gain <= 0 {
		gain = chiptone.DefaultGain
	}
	v := math.Round(127 * math.Sqrt(math.Min(gain, 1)))
	return uint8(max(v, 1))
}

// channel skips the General MIDI percussion channel.
func channel(track int) uint8 {
	c := track % 15
	if c >= 9 {
		c++
	}
	return uint8(c)
}

func write(file *smf.SMF) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("could not write midi file: %w", err)
	}
	return buf.Bytes(), nil
}
