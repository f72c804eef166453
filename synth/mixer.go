package synth

import (
	"math"
	"slices"
	"sync"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/chiptone"
)

// Timeline is a clock that voices can be scheduled on. The live player and
// the offline renderer both schedule through this interface, so tone
// generation never needs to know which one it is talking to.
type Timeline interface {
	SampleRate() int
	Now() float64
	Schedule(at float64, v *Voice)
}

type scheduledVoice struct {
	start int64
	voice *Voice
}

// Mixer sums scheduled voices into an output stream. Its clock is the number
// of frames rendered so far, so time only advances when audio is pulled:
// either by an AudioContext (live) or by a renderer (offline). All methods
// are safe for concurrent use.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	gain       float32
	frame      int64
	pending    []scheduledVoice // sorted by start frame
	active     []scheduledVoice
	mono       []float32
}

var _ Timeline = (*Mixer)(nil)
var _ chiptone.AudioSource = (*Mixer)(nil)

// NewMixer returns a mixer at time zero.
func NewMixer(sampleRate, channels int, gain float64) *Mixer {
	if channels < 1 {
		channels = 1
	}
	return &Mixer{sampleRate: sampleRate, channels: channels, gain: float32(gain)}
}

func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

func (m *Mixer) NumChannels() int {
	return m.channels
}

// Now returns the current time of the mixer clock in seconds.
func (m *Mixer) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.frame) / float64(m.sampleRate)
}

// Frame returns the current time of the mixer clock in frames.
func (m *Mixer) Frame() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

// Schedule queues a voice to start at time at (seconds). A voice scheduled in
// the past starts with the next rendered frame. Voices with equal start times
// are mixed in the order they were scheduled.
func (m *Mixer) Schedule(at float64, v *Voice) {
	start := int64(math.Round(at * float64(m.sampleRate)))
	m.mu.Lock()
	defer m.mu.Unlock()
	i, _ := slices.BinarySearchFunc(m.pending, start+1, func(s scheduledVoice, t int64) int {
		if s.start < t {
			return -1
		}
		return 1
	})
	m.pending = slices.Insert(m.pending, i, scheduledVoice{start: start, voice: v})
}

// Pending returns the number of voices that are scheduled but not started.
func (m *Mixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Sounding returns the number of voices currently producing sound.
func (m *Mixer) Sounding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Silence drops every scheduled and sounding voice. The clock keeps running.
func (m *Mixer) Silence() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.pending)
	clear(m.active)
	m.pending = m.pending[:0]
	m.active = m.active[:0]
}

// ReadAudio renders len(buf)/channels frames of interleaved audio, advancing
// the clock. It implements chiptone.AudioSource.
func (m *Mixer) ReadAudio(buf []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	frames := len(buf) / m.channels
	if cap(m.mono) < frames {
		m.mono = make([]float32, frames)
	}
	mono := m.mono[:frames]
	m.mix(mono)
	for i, v := range mono {
		for c := 0; c < m.channels; c++ {
			buf[i*m.channels+c] = v
		}
	}
	clear(buf[frames*m.channels:])
	return nil
}

// Render fills every channel of dst with the next frames, advancing the
// clock by the length of the channels.
func (m *Mixer) Render(dst [][]float32) {
	if len(dst) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mix(dst[0])
	for _, ch := range dst[1:] {
		copy(ch, dst[0])
	}
}

// mix overwrites mono with the next len(mono) frames. Caller holds the lock.
func (m *Mixer) mix(mono []float32) {
	clear(mono)
	end := m.frame + int64(len(mono))
	n := 0
	for n < len(m.pending) && m.pending[n].start < end {
		s := m.pending[n]
		if s.start < m.frame {
			s.start = m.frame
		}
		m.active = append(m.active, s)
		n++
	}
	m.pending = slices.Delete(m.pending, 0, n)
	for _, s := range m.active {
		offset := int64(0)
		if s.start > m.frame {
			offset = s.start - m.frame
		}
		s.voice.AddTo(mono[offset:])
	}
	m.active = slices.DeleteFunc(m.active, func(s scheduledVoice) bool { return s.voice.Done() })
	if m.gain != 1 {
		vek32.MulNumber_Inplace(mono, m.gain)
	}
	m.frame = end
}
