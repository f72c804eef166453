package chiptone

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine settings shared by live playback and offline
// rendering. The zero value of a field means its default.
type Config struct {
	SampleRate int     `yaml:"sampleRate,omitempty"`
	Channels   int     `yaml:"channels,omitempty"`
	MasterGain float64 `yaml:"masterGain,omitempty"`

	// Lookahead is how far ahead of the audio clock the scheduler places
	// note triggers; TickInterval is how often it wakes up to do so.
	Lookahead    time.Duration `yaml:"lookahead,omitempty"`
	TickInterval time.Duration `yaml:"tickInterval,omitempty"`
}

const (
	DefaultSampleRate   = 44100
	DefaultChannels     = 1
	DefaultLookahead    = 100 * time.Millisecond
	DefaultTickInterval = 25 * time.Millisecond
	MaxChannels         = 8
)

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SampleRate:   DefaultSampleRate,
		Channels:     DefaultChannels,
		MasterGain:   1,
		Lookahead:    DefaultLookahead,
		TickInterval: DefaultTickInterval,
	}
}

// WithDefaults fills the zero fields of c from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels == 0 {
		c.Channels = d.Channels
	}
	if c.MasterGain == 0 {
		c.MasterGain = d.MasterGain
	}
	if c.Lookahead == 0 {
		c.Lookahead = d.Lookahead
	}
	if c.TickInterval == 0 {
		c.TickInterval = d.TickInterval
	}
	return c
}

// Validate checks the ranges of a config with defaults applied.
func (c Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return paramError("sampleRate", c.SampleRate, "should be in 8000..192000")
	}
	if c.Channels < 1 || c.Channels > MaxChannels {
		return paramError("channels", c.Channels, fmt.Sprintf("should be in 1..%d", MaxChannels))
	}
	if c.MasterGain < 0 {
		return paramError("masterGain", c.MasterGain, "should be >= 0")
	}
	if c.Lookahead < 0 || c.TickInterval <= 0 {
		return paramError("tickInterval", c.TickInterval, "lookahead and tick interval should be positive")
	}
	return nil
}

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config %v: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("could not parse config %v: %w", path, err)
	}
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
