package chiptone

import (
	"fmt"
	"math"
	"strings"
)

// Waveform selects the oscillator shape of a tone.
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
	Noise
)

var waveformNames = [...]string{"sine", "square", "sawtooth", "triangle", "noise"}

func (w Waveform) String() string {
	if w < 0 || int(w) >= len(waveformNames) {
		return fmt.Sprintf("Waveform(%d)", int(w))
	}
	return waveformNames[w]
}

// ParseWaveform accepts the lowercase names used in song files; "saw" is
// accepted as a synonym of "sawtooth".
func ParseWaveform(s string) (Waveform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "saw" {
		return Sawtooth, nil
	}
	for i, name := range waveformNames {
		if name == s {
			return Waveform(i), nil
		}
	}
	return 0, paramError("waveform", s, "unknown waveform")
}

func (w Waveform) MarshalText() ([]byte, error) {
	if w < 0 || int(w) >= len(waveformNames) {
		return nil, paramError("waveform", int(w), "unknown waveform")
	}
	return []byte(waveformNames[w]), nil
}

func (w *Waveform) UnmarshalText(text []byte) error {
	v, err := ParseWaveform(string(text))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// SoundEffectParameters fully determines one tone: the waveform sweeps
// exponentially from StartFrequency to EndFrequency (Hz) over Duration
// (seconds) with peak amplitude Gain.
type SoundEffectParameters struct {
	Waveform       Waveform `yaml:"waveform" json:"waveform"`
	StartFrequency float64  `yaml:"startFrequency" json:"startFrequency"`
	EndFrequency   float64  `yaml:"endFrequency" json:"endFrequency"`
	Duration       float64  `yaml:"duration" json:"duration"`
	Gain           float64  `yaml:"gain" json:"gain"`
}

// Validate rejects parameters that cannot produce a tone. Gain is not
// validated, it is clamped by Clamped.
func (p SoundEffectParameters) Validate() error {
	if p.Waveform < Sine || p.Waveform > Noise {
		return paramError("waveform", int(p.Waveform), "unknown waveform")
	}
	if !(p.Duration > 0) || math.IsInf(p.Duration, 0) {
		return paramError("duration", p.Duration, "should be > 0")
	}
	if !(p.StartFrequency > 0) || math.IsInf(p.StartFrequency, 0) {
		return paramError("startFrequency", p.StartFrequency, "should be > 0")
	}
	if !(p.EndFrequency > 0) || math.IsInf(p.EndFrequency, 0) {
		return paramError("endFrequency", p.EndFrequency, "should be > 0")
	}
	if math.IsNaN(p.Gain) {
		return paramError("gain", p.Gain, "not a number")
	}
	return nil
}

// Clamped returns a copy with Gain limited to [0, 1].
func (p SoundEffectParameters) Clamped() SoundEffectParameters {
	p.Gain = clampFloat(p.Gain, 0, 1)
	return p
}

// validateGain rejects a song or grid gain that is not a finite number.
func validateGain(g float64) error {
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return paramError("gain", g, "should be a finite number")
	}
	return nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
