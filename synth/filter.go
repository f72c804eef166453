package synth

import (
	"math"

	"github.com/vsariola/chiptone"
)

// FilterKind selects the response of a Filter.
type FilterKind int

const (
	Lowpass FilterKind = iota
	Highpass
	Bandpass
)

// Filter is a second order (biquad) filter with cutoff (or center) frequency
// Cutoff in Hz and resonance Q, using the coefficients of the RBJ audio EQ
// cookbook.
type Filter struct {
	Kind   FilterKind
	Cutoff float64
	Q      float64
}

func (f Filter) Name() string {
	switch f.Kind {
	case Highpass:
		return "highpass"
	case Bandpass:
		return "bandpass"
	default:
		return "lowpass"
	}
}

type biquad struct {
	b0, b1, b2, a1, a2 float64
}

func (f Filter) coefficients(sampleRate int) biquad {
	nyquist := float64(sampleRate) / 2
	cutoff := clamp(f.Cutoff, 10, nyquist*0.99)
	q := f.Q
	if !(q > 0) {
		q = DefaultFilterQ
	}
	w0 := 2 * math.Pi * cutoff / float64(sampleRate)
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)
	var b0, b1, b2 float64
	switch f.Kind {
	case Highpass:
		b0, b1, b2 = (1+cosw)/2, -(1 + cosw), (1+cosw)/2
	case Bandpass:
		b0, b1, b2 = alpha, 0, -alpha
	default:
		b0, b1, b2 = (1-cosw)/2, 1-cosw, (1-cosw)/2
	}
	a0 := 1 + alpha
	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: -2 * cosw / a0, a2: (1 - alpha) / a0}
}

func (f Filter) process(src *chiptone.AudioBuffer) *chiptone.AudioBuffer {
	c := f.coefficients(src.SampleRate)
	ret := src.Copy()
	for _, ch := range ret.Channels {
		var x1, x2, y1, y2 float64
		for i, v := range ch {
			x := float64(v)
			y := c.b0*x + c.b1*x1 + c.b2*x2 - c.a1*y1 - c.a2*y2
			x2, x1 = x1, x
			y2, y1 = y1, y
			ch[i] = float32(y)
		}
	}
	return ret
}
