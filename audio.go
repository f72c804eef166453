package chiptone

import (
	"fmt"
	"io"
	"math"
)

type (
	// AudioBuffer is a block of planar float samples: Channels[c][i] is the
	// i:th frame of channel c. Samples are nominally in [-1, 1]. It is the
	// result of an offline render and the input of the WAV encoder.
	AudioBuffer struct {
		SampleRate int
		Channels   [][]float32
	}

	// AudioSource is pulled by an AudioContext for live playback. ReadAudio
	// fills buf completely with interleaved frames.
	AudioSource interface {
		ReadAudio(buf []float32) error
	}

	// AudioContext plays AudioSources, typically on the sound card.
	AudioContext interface {
		Play(src AudioSource) CloserWaiter
		SampleRate() int
		NumChannels() int
		Close() error
	}

	// CloserWaiter is a handle to one playing AudioSource.
	CloserWaiter interface {
		Close() error
		Wait()
	}
)

// NewAudioBuffer allocates a silent buffer of the given shape.
func NewAudioBuffer(channels, frames, sampleRate int) *AudioBuffer {
	ret := &AudioBuffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for c := range ret.Channels {
		ret.Channels[c] = make([]float32, frames)
	}
	return ret
}

// NumChannels returns the number of channels.
func (b *AudioBuffer) NumChannels() int {
	return len(b.Channels)
}

// Frames returns the length of the buffer in frames.
func (b *AudioBuffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the length of the buffer in seconds.
func (b *AudioBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Validate rejects buffers that cannot be encoded: no channels, a
// non-positive sample rate or channels of different lengths.
func (b *AudioBuffer) Validate() error {
	if len(b.Channels) == 0 {
		return paramError("channels", 0, "buffer has no channels")
	}
	if b.SampleRate <= 0 {
		return paramError("sampleRate", b.SampleRate, "should be > 0")
	}
	for c, ch := range b.Channels {
		if len(ch) != len(b.Channels[0]) {
			return paramError("channels", c, "channel length mismatch")
		}
	}
	return nil
}

// CheckFinite returns ErrRenderFailure if any sample is NaN or infinite.
func (b *AudioBuffer) CheckFinite() error {
	for c, ch := range b.Channels {
		for i, v := range ch {
			if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("%w: non-finite sample %v at channel %d frame %d", ErrRenderFailure, v, c, i)
			}
		}
	}
	return nil
}

// Copy makes a deep copy of an AudioBuffer.
func (b *AudioBuffer) Copy() *AudioBuffer {
	ret := &AudioBuffer{SampleRate: b.SampleRate, Channels: make([][]float32, len(b.Channels))}
	for c, ch := range b.Channels {
		ret.Channels[c] = append([]float32(nil), ch...)
	}
	return ret
}

// Interleaved returns the frames as one slice, channels alternating.
func (b *AudioBuffer) Interleaved() []float32 {
	n := len(b.Channels)
	ret := make([]float32, n*b.Frames())
	for c, ch := range b.Channels {
		for i, v := range ch {
			ret[i*n+c] = v
		}
	}
	return ret
}

// Wav encodes the buffer as a 16-bit PCM .wav file.
func (b *AudioBuffer) Wav() ([]byte, error) {
	return Wav(b)
}

// Raw encodes the buffer as headerless interleaved 16-bit PCM.
func (b *AudioBuffer) Raw() ([]byte, error) {
	return Raw(b)
}

// Source returns an AudioSource playing the buffer once. After the last frame
// ReadAudio pads with silence and returns io.EOF.
func (b *AudioBuffer) Source() AudioSource {
	return &bufferSource{buffer: b}
}

type bufferSource struct {
	buffer *AudioBuffer
	pos    int
}

func (s *bufferSource) ReadAudio(buf []float32) error {
	n := len(s.buffer.Channels)
	if n == 0 {
		clear(buf)
		return io.EOF
	}
	frames := len(buf) / n
	for i := 0; i < frames; i++ {
		for c, ch := range s.buffer.Channels {
			var v float32
			if s.pos < len(ch) {
				v = ch[s.pos]
			}
			buf[i*n+c] = v
		}
		s.pos++
	}
	if s.pos >= s.buffer.Frames() {
		return io.EOF
	}
	return nil
}
