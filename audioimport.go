package chiptone

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// ReadWav decodes a PCM .wav file into an AudioBuffer, e.g. a recording to be
// processed with voice effects. Any bit depth supported by go-audio/wav is
// accepted; samples are scaled to [-1, 1].
func ReadWav(r io.ReadSeeker) (*AudioBuffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("ReadWav failed: not a valid .wav file")
	}
	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("ReadWav failed: %w", err)
	}
	numChannels := pcm.Format.NumChannels
	if numChannels <= 0 {
		return nil, paramError("channels", numChannels, "wav file declares no channels")
	}
	bitDepth := pcm.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, paramError("bitDepth", bitDepth, "unsupported")
	}
	scale := float32(int64(1) << (bitDepth - 1))
	frames := len(pcm.Data) / numChannels
	ret := NewAudioBuffer(numChannels, frames, pcm.Format.SampleRate)
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			v := pcm.Data[i*numChannels+c]
			if bitDepth == 8 { // 8-bit wav is unsigned
				v -= 128
			}
			ret.Channels[c][i] = float32(v) / scale
		}
	}
	return ret, nil
}
