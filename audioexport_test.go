package chiptone_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/vsariola/chiptone"
)

func TestWavHeader(t *testing.T) {
	buffer := chiptone.NewAudioBuffer(2, 100, 44100)
	wav, err := buffer.Wav()
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	dataLength := 100 * 2 * 2
	if len(wav) != 44+dataLength {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+dataLength)
	}
	le := binary.LittleEndian
	for _, c := range []struct {
		name string
		got  uint32
		want uint32
	}{
		{"riff size", le.Uint32(wav[4:]), uint32(36 + dataLength)},
		{"fmt size", le.Uint32(wav[16:]), 16},
		{"format", uint32(le.Uint16(wav[20:])), 1},
		{"channels", uint32(le.Uint16(wav[22:])), 2},
		{"sample rate", le.Uint32(wav[24:]), 44100},
		{"byte rate", le.Uint32(wav[28:]), 44100 * 2 * 2},
		{"block align", uint32(le.Uint16(wav[32:])), 4},
		{"bits per sample", uint32(le.Uint16(wav[34:])), 16},
		{"data size", le.Uint32(wav[40:]), uint32(dataLength)},
	} {
		if c.got != c.want {
			t.Fatalf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	for off, tag := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"} {
		if string(wav[off:off+4]) != tag {
			t.Fatalf("expected %q at offset %d, got %q", tag, off, wav[off:off+4])
		}
	}
}

func TestWavEmptyBuffer(t *testing.T) {
	wav, err := chiptone.NewAudioBuffer(1, 0, 22050).Wav()
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	if len(wav) != 44 || binary.LittleEndian.Uint32(wav[4:]) != 36 || binary.LittleEndian.Uint32(wav[40:]) != 0 {
		t.Fatalf("empty buffer should encode as a bare header")
	}
}

func TestWavInterleavesAndClamps(t *testing.T) {
	buffer := &chiptone.AudioBuffer{
		SampleRate: 8000,
		Channels: [][]float32{
			{0, 1, 2, float32(math.NaN())},
			{0.5, -1, -2, -0.5},
		},
	}
	raw, err := buffer.Raw()
	if err != nil {
		t.Fatalf("Raw failed: %v", err)
	}
	samples := make([]int16, 8)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, samples); err != nil {
		t.Fatalf("could not read samples: %v", err)
	}
	want := []int16{0, 16384, 32767, -32767, 32767, -32768, 0, -16384}
	for i := range want {
		if samples[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d (all: %v)", i, samples[i], want[i], samples)
		}
	}
	wav, _ := buffer.Wav()
	if !bytes.Equal(wav[44:], raw) {
		t.Fatalf("wav payload should equal the raw encoding")
	}
}

func TestWavRejectsMalformedBuffers(t *testing.T) {
	for name, b := range map[string]*chiptone.AudioBuffer{
		"no channels": {SampleRate: 44100},
		"zero rate":   {SampleRate: 0, Channels: [][]float32{{0}}},
		"uneven":      {SampleRate: 44100, Channels: [][]float32{{0, 0}, {0}}},
	} {
		if _, err := b.Wav(); !errors.Is(err, chiptone.ErrInvalidParameter) {
			t.Fatalf("%s: expected ErrInvalidParameter, got %v", name, err)
		}
	}
}

func TestWavDecodesBack(t *testing.T) {
	buffer := chiptone.NewAudioBuffer(2, 441, 44100)
	for i := range buffer.Channels[0] {
		buffer.Channels[0][i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
		buffer.Channels[1][i] = -buffer.Channels[0][i] / 2
	}
	wav, err := buffer.Wav()
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	decoded, err := chiptone.ReadWav(bytes.NewReader(wav))
	if err != nil {
		t.Fatalf("ReadWav failed: %v", err)
	}
	if decoded.SampleRate != 44100 || decoded.NumChannels() != 2 || decoded.Frames() != 441 {
		t.Fatalf("decoded shape %d Hz %d ch %d frames", decoded.SampleRate, decoded.NumChannels(), decoded.Frames())
	}
	for c := range buffer.Channels {
		for i, v := range buffer.Channels[c] {
			if d := math.Abs(float64(decoded.Channels[c][i] - v)); d > 1.0/16384 {
				t.Fatalf("channel %d frame %d: decoded %v, want %v", c, i, decoded.Channels[c][i], v)
			}
		}
	}
}

func TestPCM16(t *testing.T) {
	for _, c := range []struct {
		in   float32
		want int16
	}{{0, 0}, {1, 32767}, {-1, -32767}, {1.5, 32767}, {-1.5, -32768}, {0.25, 8192}} {
		if got := chiptone.PCM16(c.in); got != c.want {
			t.Fatalf("PCM16(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBufferSourcePadsAndEnds(t *testing.T) {
	buffer := &chiptone.AudioBuffer{SampleRate: 8000, Channels: [][]float32{{1, 2, 3}, {4, 5, 6}}}
	src := buffer.Source()
	buf := make([]float32, 4)
	if err := src.ReadAudio(buf); err != nil {
		t.Fatalf("first read should not end: %v", err)
	}
	if buf[0] != 1 || buf[1] != 4 || buf[2] != 2 || buf[3] != 5 {
		t.Fatalf("frames not interleaved: %v", buf)
	}
	if err := src.ReadAudio(buf); err == nil {
		t.Fatalf("second read should report the end")
	}
	if buf[0] != 3 || buf[1] != 6 || buf[2] != 0 || buf[3] != 0 {
		t.Fatalf("tail should be padded with silence: %v", buf)
	}
}

func TestCheckFinite(t *testing.T) {
	b := chiptone.NewAudioBuffer(1, 4, 44100)
	b.Channels[0] = []float32{0, 1, -1, 0.5}
	if err := b.CheckFinite(); err != nil {
		t.Fatalf("finite buffer rejected: %v", err)
	}
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		c := b.Copy()
		c.Channels[0][2] = float32(bad)
		if err := c.CheckFinite(); !errors.Is(err, chiptone.ErrRenderFailure) {
			t.Fatalf("sample %v: expected ErrRenderFailure, got %v", bad, err)
		}
	}
}
