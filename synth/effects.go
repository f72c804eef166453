package synth

import (
	"math"
	"strings"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/chiptone"
)

type (
	// Effect is one stage of an effect chain. The set of effects is closed:
	// Echo, PitchShift, Robot, Distortion, Filter, Gain and PassThrough.
	// PassThrough stands for every effect name that has no DSP behind it
	// and leaves the audio untouched.
	Effect interface {
		Name() string
		process(src *chiptone.AudioBuffer) *chiptone.AudioBuffer
	}

	// Chain applies effects in order.
	Chain []Effect

	// Echo mixes the signal with itself delayed by Delay seconds, feeding the
	// delayed signal back with gain Feedback.
	Echo struct {
		Delay    float64
		Feedback float64
	}

	// PitchShift resamples the signal at playback rate 2^(Semitones/12). The
	// output length changes by the inverse of the rate.
	PitchShift struct {
		Semitones float64
		name      string
	}

	// Robot amplitude modulates the signal with a unipolar sawtooth of Rate
	// Hz. Depth 1 modulates fully, 0 leaves the signal intact.
	Robot struct {
		Rate  float64
		Depth float64
	}

	// Distortion is a tanh waveshaper normalized so that full scale input
	// stays at full scale.
	Distortion struct {
		Drive float64
	}

	// Gain scales the signal.
	Gain struct {
		Amount float64
	}

	// PassThrough returns the signal unchanged. Name is the effect that was
	// asked for.
	PassThrough struct {
		Effect string
	}
)

const (
	DefaultEchoDelay     = 0.3
	DefaultEchoFeedback  = 0.4
	MaxEchoDelay         = 5
	maxEchoRepeats       = 64
	echoCutoff           = 1e-4 // truncate the tail once feedback^(2k) drops below this
	DefaultRobotRate     = 30
	DefaultRobotDepth    = 1
	DefaultDrive         = 4
	MonsterSemitones     = -7
	ChipmunkSemitones    = 7
	maxShiftSemitones    = 24
	telephoneCenter      = 1500
	telephoneQ           = 1.2
	DefaultFilterQ       = math.Sqrt2 / 2
	DefaultLowpassCutoff = 1000
	DefaultHighpassCut   = 300
)

// ParseEffect maps an effect name and its parameter bag to an Effect.
// Unknown names (for example "old-radio" or "reverb") give PassThrough, never
// an error. Missing or non-finite parameters take their defaults and
// out-of-range ones are clamped.
func ParseEffect(name string, params map[string]float64) Effect {
	get := func(def float64, keys ...string) float64 {
		for _, k := range keys {
			if v, ok := params[k]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
				return v
			}
		}
		return def
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "echo", "delay":
		return Echo{
			Delay:    clamp(get(DefaultEchoDelay, "delayTime", "delay"), 0, MaxEchoDelay),
			Feedback: clamp(get(DefaultEchoFeedback, "feedback"), 0, 1),
		}
	case "pitch", "pitchshift", "pitch-shift":
		return PitchShift{Semitones: clamp(get(0, "semitones", "shift"), -maxShiftSemitones, maxShiftSemitones), name: "pitch"}
	case "monster":
		return PitchShift{Semitones: clamp(get(MonsterSemitones, "semitones", "shift"), -maxShiftSemitones, maxShiftSemitones), name: "monster"}
	case "chipmunk":
		return PitchShift{Semitones: clamp(get(ChipmunkSemitones, "semitones", "shift"), -maxShiftSemitones, maxShiftSemitones), name: "chipmunk"}
	case "robot":
		return Robot{
			Rate:  clamp(get(DefaultRobotRate, "rate", "frequency"), 0, 1000),
			Depth: clamp(get(DefaultRobotDepth, "depth"), 0, 1),
		}
	case "distortion", "distort":
		return Distortion{Drive: clamp(get(DefaultDrive, "drive", "amount"), 0, 100)}
	case "lowpass":
		return Filter{Kind: Lowpass, Cutoff: get(DefaultLowpassCutoff, "cutoff", "frequency"), Q: get(DefaultFilterQ, "q")}
	case "highpass":
		return Filter{Kind: Highpass, Cutoff: get(DefaultHighpassCut, "cutoff", "frequency"), Q: get(DefaultFilterQ, "q")}
	case "telephone":
		return Filter{Kind: Bandpass, Cutoff: get(telephoneCenter, "cutoff", "frequency"), Q: get(telephoneQ, "q")}
	case "gain", "volume":
		return Gain{Amount: clamp(get(1, "amount", "gain"), 0, 16)}
	default:
		return PassThrough{Effect: name}
	}
}

// BuildChain applies the named effect to src and returns the processed
// buffer. src is not modified.
func BuildChain(name string, params map[string]float64, src *chiptone.AudioBuffer) *chiptone.AudioBuffer {
	return Chain{ParseEffect(name, params)}.Apply(src)
}

// Apply runs src through every effect of the chain. An empty source gives an
// empty buffer with the same channel count and sample rate.
func (c Chain) Apply(src *chiptone.AudioBuffer) *chiptone.AudioBuffer {
	buf := src
	for _, e := range c {
		if buf.Frames() == 0 || buf.SampleRate <= 0 {
			return emptyLike(buf)
		}
		buf = e.process(buf)
	}
	if buf.Frames() == 0 {
		return emptyLike(buf)
	}
	return buf
}

// Names returns the names of the effects in the chain.
func (c Chain) Names() []string {
	ret := make([]string, len(c))
	for i, e := range c {
		ret[i] = e.Name()
	}
	return ret
}

func emptyLike(b *chiptone.AudioBuffer) *chiptone.AudioBuffer {
	return chiptone.NewAudioBuffer(b.NumChannels(), 0, b.SampleRate)
}

func (Echo) Name() string { return "echo" }
func (p PitchShift) Name() string {
	if p.name == "" {
		return "pitch"
	}
	return p.name
}
func (Robot) Name() string { return "robot" }
func (Distortion) Name() string { return "distortion" }
func (Gain) Name() string { return "gain" }
func (p PassThrough) Name() string { return p.Effect }

// Repeats returns how many echoes are kept before the feedback tail is cut.
func (e Echo) Repeats() int {
	switch {
	case e.Feedback <= 0:
		return 0
	case e.Feedback >= 1:
		return maxEchoRepeats
	}
	k := int(math.Ceil(math.Log(echoCutoff) / (2 * math.Log(e.Feedback))))
	return min(max(k, 1), maxEchoRepeats)
}

func (e Echo) process(src *chiptone.AudioBuffer) *chiptone.AudioBuffer {
	delay := int(math.Round(e.Delay * float64(src.SampleRate)))
	repeats := e.Repeats()
	if delay <= 0 || repeats == 0 {
		return src
	}
	frames := src.Frames() + delay*repeats
	ret := chiptone.NewAudioBuffer(src.NumChannels(), frames, src.SampleRate)
	fb := float32(e.Feedback)
	tmp := make([]float32, delay)
	for c, in := range src.Channels {
		out := ret.Channels[c]
		copy(out, in)
		// y[n] = x[n] + fb * y[n-delay], one delay-long block at a time
		for start := delay; start < frames; start += delay {
			end := min(start+delay, frames)
			block := tmp[:end-start]
			vek32.MulNumber_Into(block, out[start-delay:end-delay], fb)
			vek32.Add_Inplace(out[start:end], block)
		}
	}
	return ret
}

// Rate returns the playback rate multiplier.
func (p PitchShift) Rate() float64 {
	return math.Pow(2, p.Semitones/12)
}

func (p PitchShift) process(src *chiptone.AudioBuffer) *chiptone.AudioBuffer {
	rate := p.Rate()
	if rate == 1 {
		return src
	}
	n := src.Frames()
	frames := int(math.Ceil(float64(n) / rate))
	ret := chiptone.NewAudioBuffer(src.NumChannels(), frames, src.SampleRate)
	for c, in := range src.Channels {
		out := ret.Channels[c]
		for j := range out {
			pos := float64(j) * rate
			i := int(pos)
			if i >= n-1 {
				out[j] = in[n-1]
				continue
			}
			frac := float32(pos - float64(i))
			out[j] = in[i] + (in[i+1]-in[i])*frac
		}
	}
	return ret
}

func (r Robot) process(src *chiptone.AudioBuffer) *chiptone.AudioBuffer {
	if r.Depth <= 0 {
		return src
	}
	n := src.Frames()
	mod := make([]float32, n)
	step := r.Rate / float64(src.SampleRate)
	phase := 0.0
	for i := range mod {
		mod[i] = float32(1 - r.Depth + r.Depth*phase)
		phase += step
		phase -= math.Floor(phase)
	}
	ret := src.Copy()
	for _, ch := range ret.Channels {
		vek32.Mul_Inplace(ch, mod)
	}
	return ret
}

func (d Distortion) process(src *chiptone.AudioBuffer) *chiptone.AudioBuffer {
	if d.Drive <= 0 {
		return src
	}
	norm := math.Tanh(d.Drive)
	ret := src.Copy()
	for _, ch := range ret.Channels {
		for i, v := range ch {
			ch[i] = float32(math.Tanh(d.Drive*float64(v)) / norm)
		}
	}
	return ret
}

func (g Gain) process(src *chiptone.AudioBuffer) *chiptone.AudioBuffer {
	if g.Amount == 1 {
		return src
	}
	ret := src.Copy()
	for _, ch := range ret.Channels {
		vek32.MulNumber_Inplace(ch, float32(g.Amount))
	}
	return ret
}

func (PassThrough) process(src *chiptone.AudioBuffer) *chiptone.AudioBuffer {
	return src
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
