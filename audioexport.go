package chiptone

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	wavHeaderSize  = 44
	bytesPerSample = 2
)

// Wav encodes the buffer as a canonical 44-byte-header RIFF/WAVE file with
// interleaved little-endian signed 16-bit samples.
func Wav(buffer *AudioBuffer) ([]byte, error) {
	if err := buffer.Validate(); err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	dataLength := buffer.Frames() * buffer.NumChannels() * bytesPerSample
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataLength))
	if err := wavHeader(buffer.NumChannels(), buffer.SampleRate, dataLength, buf); err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	if err := rawToBuffer(buffer, buf); err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Raw encodes the samples exactly as Wav does, without the header.
func Raw(buffer *AudioBuffer) ([]byte, error) {
	if err := buffer.Validate(); err != nil {
		return nil, fmt.Errorf("Raw failed: %w", err)
	}
	buf := new(bytes.Buffer)
	if err := rawToBuffer(buffer, buf); err != nil {
		return nil, fmt.Errorf("Raw failed: %w", err)
	}
	return buf.Bytes(), nil
}

func rawToBuffer(buffer *AudioBuffer, buf *bytes.Buffer) error {
	numChannels := buffer.NumChannels()
	int16data := make([]int16, buffer.Frames()*numChannels)
	for c, ch := range buffer.Channels {
		for i, v := range ch {
			int16data[i*numChannels+c] = PCM16(v)
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, int16data); err != nil {
		return fmt.Errorf("could not binary write data to binary buffer: %w", err)
	}
	return nil
}

// PCM16 scales a float sample by 32767, rounds to the nearest integer and
// clamps to the int16 range. NaN becomes silence.
func PCM16(v float32) int16 {
	f := float64(v)
	if math.IsNaN(f) {
		return 0
	}
	s := math.Round(f * math.MaxInt16)
	if s < math.MinInt16 {
		return math.MinInt16
	}
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(s)
}

// wavHeader writes the header of a 16-bit PCM .wav file whose data chunk is
// dataLength bytes long. The RIFF chunk size covers everything after its own
// field: the remaining 36 header bytes plus the data.
func wavHeader(numChannels, sampleRate, dataLength int, buf *bytes.Buffer) error {
	// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	chunkSize := wavHeaderSize - 8 + dataLength
	if uint64(chunkSize) > math.MaxUint32 {
		return paramError("frames", dataLength/(numChannels*bytesPerSample), "too long for a .wav file")
	}
	header := []any{
		[]byte("RIFF"),
		uint32(chunkSize),
		[]byte("WAVE"),
		[]byte("fmt "),
		uint32(16), // fmt chunk size
		uint16(1),  // PCM
		uint16(numChannels),
		uint32(sampleRate),
		uint32(sampleRate * numChannels * bytesPerSample), // avgBytesPerSec
		uint16(numChannels * bytesPerSample),              // blockAlign
		uint16(8 * bytesPerSample),                        // bits per sample
		[]byte("data"),
		uint32(dataLength),
	}
	for _, field := range header {
		if err := binary.Write(buf, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("could not write wav header: %w", err)
		}
	}
	return nil
}
