package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vsariola/chiptone"
	"github.com/vsariola/chiptone/version"
)

var (
	configPath string
	verbose    bool
	sampleRate int
	channels   int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chiptone",
	Short: "Procedural chiptune songs, sound effects and voice effects",
	Long: `chiptone synthesizes songs, step sequencer grids and sound effects from
.yml/.json files, plays them on the sound card or renders them to .wav.

Examples:
  chiptone render song.yml
  chiptone sfx --waveform square --start 880 --end 440 --duration 0.2
  chiptone fx robot voice.wav
  chiptone play grid.yml`,
	Version:       version.VersionOrHash,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(sfxCmd)
	rootCmd.AddCommand(fxCmd)
	rootCmd.AddCommand(midiCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Engine configuration file (.yml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log every scheduled tone")
	pf.IntVar(&sampleRate, "rate", 0, "Sample rate in Hz (overrides the configuration file)")
	pf.IntVar(&channels, "channels", 0, "Number of output channels (overrides the configuration file)")
}

// loadConfig reads the configuration file, if any, and applies the flags on
// top of it.
func loadConfig() (chiptone.Config, error) {
	cfg := chiptone.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = chiptone.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if sampleRate != 0 {
		cfg.SampleRate = sampleRate
	}
	if channels != 0 {
		cfg.Channels = channels
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
