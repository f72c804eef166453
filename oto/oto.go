// Package oto plays chiptone audio sources on the sound card using
// github.com/ebitengine/oto/v3.
package oto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/chiptone"
)

type (
	// OtoContext implements chiptone.AudioContext. oto allows only one
	// context per process.
	OtoContext struct {
		context    *oto.Context
		sampleRate int
		channels   int
	}

	// OtoOutput is one playing source.
	OtoOutput struct {
		player *oto.Player
		mu     sync.Mutex
		closed bool
	}

	// sourceReader adapts an AudioSource to the io.Reader oto pulls from.
	sourceReader struct {
		source   chiptone.AudioSource
		channels int
		floats   []float32
	}
)

const otoBufferSize = 20 * time.Millisecond

var _ chiptone.AudioContext = (*OtoContext)(nil)

// NewContext opens the sound card for 32-bit float output.
func NewContext(sampleRate, channels int) (*OtoContext, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferSize,
	}
	context, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{context: context, sampleRate: sampleRate, channels: channels}, nil
}

func (c *OtoContext) SampleRate() int {
	return c.sampleRate
}

func (c *OtoContext) NumChannels() int {
	return c.channels
}

// Play starts pulling audio from src until it returns io.EOF or the returned
// handle is closed.
func (c *OtoContext) Play(src chiptone.AudioSource) chiptone.CloserWaiter {
	player := c.context.NewPlayer(&sourceReader{source: src, channels: c.channels})
	player.Play()
	return &OtoOutput{player: player}
}

// Close suspends the sound card output. oto contexts cannot be reopened, so
// the process should not create another.
func (c *OtoContext) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

// Wait blocks until the source has been played to its end or the output is
// closed.
func (o *OtoOutput) Wait() {
	for {
		o.mu.Lock()
		done := o.closed || !o.player.IsPlaying()
		o.mu.Unlock()
		if done {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Close stops the output and disposes of the player.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// Read converts the float frames of the source to little-endian bytes.
func (r *sourceReader) Read(p []byte) (int, error) {
	frameSize := 4 * r.channels
	n := len(p) / frameSize * r.channels
	if n == 0 {
		return 0, nil
	}
	if cap(r.floats) < n {
		r.floats = make([]float32, n)
	}
	floats := r.floats[:n]
	err := r.source.ReadAudio(floats)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	for i, v := range floats {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	if err != nil {
		return n * 4, io.EOF
	}
	return n * 4, nil
}
