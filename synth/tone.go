package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/vsariola/chiptone"
)

const (
	// AttackSeconds is the linear fade-in that avoids a click at note on.
	AttackSeconds = 0.01

	// decayFloor is where the exponential decay ends, relative to the peak
	// gain (-60 dB). An exponential ramp can never reach zero.
	decayFloor = 1e-3
)

// Voice renders one tone: an oscillator sweeping exponentially from the start
// to the end frequency, shaped by a linear attack and an exponential decay.
// Voices are not safe for concurrent use; a Mixer owns the voices scheduled
// on it.
type Voice struct {
	params     chiptone.SoundEffectParameters
	sampleRate float64
	frames     int
	attack     int
	pos        int
	phase      float64
	logRatio   float64 // ln(end / start)
	noise      *rand.Rand
	hold       float64
}

// NewVoice validates the parameters and prepares a voice. Gain is clamped to
// [0, 1].
func NewVoice(params chiptone.SoundEffectParameters, sampleRate int) (*Voice, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, &chiptone.ParameterError{Field: "sampleRate", Value: sampleRate, Reason: "should be > 0"}
	}
	params = params.Clamped()
	frames := int(math.Round(params.Duration * float64(sampleRate)))
	if frames < 1 {
		frames = 1
	}
	attack := int(math.Round(AttackSeconds * float64(sampleRate)))
	if attack > frames/2 {
		attack = frames / 2
	}
	v := &Voice{
		params:     params,
		sampleRate: float64(sampleRate),
		frames:     frames,
		attack:     attack,
		logRatio:   math.Log(params.EndFrequency / params.StartFrequency),
	}
	if params.Waveform == chiptone.Noise {
		v.noise = rand.New(rand.NewPCG(math.Float64bits(params.StartFrequency), math.Float64bits(params.Duration)^math.Float64bits(params.EndFrequency)))
		v.hold = v.noise.Float64()*2 - 1
	}
	return v, nil
}

// Params returns the (clamped) parameters of the voice.
func (v *Voice) Params() chiptone.SoundEffectParameters {
	return v.params
}

// Frames returns the total length of the voice in frames.
func (v *Voice) Frames() int {
	return v.frames
}

// Done reports whether every frame has been rendered.
func (v *Voice) Done() bool {
	return v.pos >= v.frames
}

// Frequency returns the instantaneous frequency at frame i:
// start * (end/start)^(i/frames).
func (v *Voice) Frequency(i int) float64 {
	return v.params.StartFrequency * math.Exp(v.logRatio*float64(i)/float64(v.frames))
}

// Envelope returns the amplitude at frame i.
func (v *Voice) Envelope(i int) float64 {
	if i < 0 || i >= v.frames {
		return 0
	}
	if i < v.attack {
		return v.params.Gain * float64(i) / float64(v.attack)
	}
	x := float64(i-v.attack) / float64(v.frames-v.attack)
	return v.params.Gain * math.Pow(decayFloor, x)
}

// Next returns the next sample, or zero once the voice is done.
func (v *Voice) Next() float32 {
	if v.pos >= v.frames {
		return 0
	}
	s := v.oscillate() * v.Envelope(v.pos)
	v.phase += v.Frequency(v.pos) / v.sampleRate
	if v.phase >= 1 {
		v.phase -= math.Floor(v.phase)
		if v.noise != nil {
			v.hold = v.noise.Float64()*2 - 1
		}
	}
	v.pos++
	return float32(s)
}

// AddTo mixes the remaining frames of the voice into dst and returns the
// number of frames written.
func (v *Voice) AddTo(dst []float32) int {
	n := 0
	for n < len(dst) && v.pos < v.frames {
		dst[n] += v.Next()
		n++
	}
	return n
}

func (v *Voice) oscillate() float64 {
	p := v.phase
	switch v.params.Waveform {
	case chiptone.Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case chiptone.Sawtooth:
		return 2*p - 1
	case chiptone.Triangle:
		if p < 0.5 {
			return 4*p - 1
		}
		return 3 - 4*p
	case chiptone.Noise:
		return v.hold
	default:
		return math.Sin(2 * math.Pi * p)
	}
}

func (v *Voice) String() string {
	p := v.params
	return fmt.Sprintf("%v %.1f->%.1f Hz %.3f s gain %.2f", p.Waveform, p.StartFrequency, p.EndFrequency, p.Duration, p.Gain)
}

// GenerateTone creates a voice from the parameters and schedules it to start
// at time at (seconds) on the timeline. The timeline may be a live mixer
// pulled by the sound card or an offline one driven by a renderer; the tone
// is the same in both cases.
func GenerateTone(tl Timeline, at float64, params chiptone.SoundEffectParameters) (*Voice, error) {
	v, err := NewVoice(params, tl.SampleRate())
	if err != nil {
		return nil, fmt.Errorf("GenerateTone failed: %w", err)
	}
	tl.Schedule(at, v)
	return v, nil
}
