package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vsariola/chiptone"
	"github.com/vsariola/chiptone/oto"
	"github.com/vsariola/chiptone/player"
	"github.com/vsariola/chiptone/render"
	"github.com/vsariola/chiptone/server"
	"github.com/vsariola/chiptone/smf"
	"github.com/vsariola/chiptone/synth"
)

var (
	outDir      string
	toStdout    bool
	rawOut      bool
	loops       int
	effects     []string
	effectParam []string

	sfxWaveform string
	sfxStart    float64
	sfxEnd      float64
	sfxDuration float64
	sfxGain     float64
	sfxPlay     bool

	addr string
)

var renderCmd = &cobra.Command{
	Use:   "render <file|dir>...",
	Short: "Render songs and sequencer grids to .wav",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRender,
}

var sfxCmd = &cobra.Command{
	Use:   "sfx [output.wav]",
	Short: "Synthesize a single sound effect",
	Long: `Synthesize one tone sweeping from the start to the end frequency.
Without an output file the effect is played on the sound card.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSoundEffect,
}

var fxCmd = &cobra.Command{
	Use:   "fx <effect> <input.wav>...",
	Short: "Apply a voice effect to recordings",
	Long: `Apply an effect (echo, pitch, monster, chipmunk, robot, distortion,
lowpass, highpass, telephone, gain) to .wav recordings. Unknown effect names
pass the audio through unchanged.

Example:
  chiptone fx echo --param delay=0.25 --param feedback=0.5 voice.wav`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEffect,
}

var midiCmd = &cobra.Command{
	Use:   "midi <file|dir>...",
	Short: "Export songs and sequencer grids as standard MIDI files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMIDI,
}

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a song or sequencer grid on the sound card",
	Long:  `Play a song once, or loop a sequencer grid until interrupted.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the renderer over HTTP",
	RunE:  runServe,
}

func init() {
	for _, c := range []*cobra.Command{renderCmd, sfxCmd, fxCmd, midiCmd} {
		c.Flags().StringVarP(&outDir, "output", "o", "", "Directory for the output files (default: next to the input)")
		c.Flags().BoolVarP(&toStdout, "stdout", "s", false, "Write to standard output instead of files")
	}
	for _, c := range []*cobra.Command{renderCmd, sfxCmd} {
		c.Flags().StringSliceVarP(&effects, "effect", "e", nil, "Effects to apply after synthesis, in order")
		c.Flags().StringArrayVarP(&effectParam, "param", "p", nil, "Effect parameter as effect.name=value")
	}
	fxCmd.Flags().StringArrayVarP(&effectParam, "param", "p", nil, "Effect parameter as name=value")
	renderCmd.Flags().BoolVarP(&rawOut, "raw", "r", false, "Write headerless 16-bit PCM instead of .wav")
	for _, c := range []*cobra.Command{renderCmd, midiCmd} {
		c.Flags().IntVarP(&loops, "loops", "l", 1, "Number of times a sequencer grid is repeated")
	}

	sfxCmd.Flags().StringVarP(&sfxWaveform, "waveform", "w", "square", "Waveform: sine, square, sawtooth, triangle or noise")
	sfxCmd.Flags().Float64Var(&sfxStart, "start", 880, "Start frequency in Hz")
	sfxCmd.Flags().Float64Var(&sfxEnd, "end", 440, "End frequency in Hz")
	sfxCmd.Flags().Float64VarP(&sfxDuration, "duration", "d", 0.2, "Duration in seconds")
	sfxCmd.Flags().Float64VarP(&sfxGain, "gain", "g", 0.2, "Peak gain")
	sfxCmd.Flags().BoolVar(&sfxPlay, "play", false, "Also play the effect when writing a file")

	serveCmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Address to listen on")
}

// parseParams turns name=value pairs into a map. With prefix set, only the
// pairs of the form prefix.name=value are taken.
func parseParams(pairs []string, prefix string) (map[string]float64, error) {
	params := map[string]float64{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q is not of the form name=value", chiptone.ErrInvalidParameter, pair)
		}
		if prefix != "" {
			var found bool
			if k, found = strings.CutPrefix(k, prefix+"."); !found {
				continue
			}
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %v", chiptone.ErrInvalidParameter, pair, err)
		}
		params[k] = f
	}
	return params, nil
}

func effectChain() (synth.Chain, error) {
	var chain synth.Chain
	for _, name := range effects {
		params, err := parseParams(effectParam, name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, synth.ParseEffect(name, params))
	}
	return chain, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// forEachFile runs process on every file, reporting failures and carrying on.
func forEachFile(args []string, process func(string) error) error {
	files, err := expandArgs(args)
	if err != nil {
		return err
	}
	failed := 0
	for _, file := range files {
		if err := process(file); err != nil {
			slog.Error("could not process file", "file", file, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	chain, err := effectChain()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return forEachFile(args, func(file string) error {
		p, err := readPattern(file)
		if err != nil {
			return err
		}
		var buffer *chiptone.AudioBuffer
		if p.grid != nil {
			buffer, err = render.Grid(ctx, p.grid, loops, chain, cfg)
		} else {
			buffer, err = render.Song(ctx, p.song, chain, cfg)
		}
		if err != nil {
			return err
		}
		slog.Info("rendered", "file", file, "seconds", buffer.Duration(), "effects", chain.Names())
		if rawOut {
			raw, err := buffer.Raw()
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %w", err)
			}
			return output(file, outDir, ".raw", raw, toStdout)
		}
		wav, err := buffer.Wav()
		if err != nil {
			return fmt.Errorf("could not generate .wav file: %w", err)
		}
		return output(file, outDir, ".wav", wav, toStdout)
	})
}

func runSoundEffect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	w, err := chiptone.ParseWaveform(sfxWaveform)
	if err != nil {
		return err
	}
	params := chiptone.SoundEffectParameters{
		Waveform:       w,
		StartFrequency: sfxStart,
		EndFrequency:   sfxEnd,
		Duration:       sfxDuration,
		Gain:           sfxGain,
	}
	chain, err := effectChain()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	buffer, err := render.SoundEffect(ctx, params, chain, cfg)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		wav, err := buffer.Wav()
		if err != nil {
			return fmt.Errorf("could not generate .wav file: %w", err)
		}
		if err := output(args[0], outDir, ".wav", wav, toStdout); err != nil {
			return err
		}
		if !sfxPlay {
			return nil
		}
	}
	return playBuffer(buffer)
}

func runEffect(cmd *cobra.Command, args []string) error {
	params, err := parseParams(effectParam, "")
	if err != nil {
		return err
	}
	effect := synth.ParseEffect(args[0], params)
	if _, ok := effect.(synth.PassThrough); ok {
		slog.Warn("unknown effect, passing audio through", "effect", args[0])
	}
	ctx, cancel := signalContext()
	defer cancel()
	return forEachFile(args[1:], func(file string) error {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("could not open %v: %w", file, err)
		}
		defer f.Close()
		src, err := chiptone.ReadWav(f)
		if err != nil {
			return err
		}
		buffer, err := render.Process(ctx, src, synth.Chain{effect})
		if err != nil {
			return err
		}
		wav, err := buffer.Wav()
		if err != nil {
			return fmt.Errorf("could not generate .wav file: %w", err)
		}
		return output(file, outDir, "."+effect.Name()+".wav", wav, toStdout)
	})
}

func runMIDI(cmd *cobra.Command, args []string) error {
	return forEachFile(args, func(file string) error {
		p, err := readPattern(file)
		if err != nil {
			return err
		}
		var mid []byte
		if p.grid != nil {
			mid, err = smf.Grid(p.grid, loops)
		} else {
			mid, err = smf.Song(p.song)
		}
		if err != nil {
			return err
		}
		return output(file, outDir, ".mid", mid, toStdout)
	})
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := readPattern(args[0])
	if err != nil {
		return err
	}
	audio, err := oto.NewContext(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return fmt.Errorf("could not acquire oto AudioContext: %w", err)
	}
	defer audio.Close()
	engine, err := player.NewEngine(audio, cfg, player.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer engine.Close()
	var pat player.Pattern
	if p.grid != nil {
		pat = player.ForGrid(p.grid)
	} else {
		pat = player.ForSong(p.song)
	}
	session, err := engine.Start(pat)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	outcome, err := session.Wait(ctx)
	if err != nil {
		// interrupted
		engine.Stop()
		return nil
	}
	slog.Info("playback ended", "outcome", outcome)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	srv := server.New(server.Config{Addr: addr, Render: cfg}, slog.Default())
	return srv.Run(ctx)
}

func playBuffer(buffer *chiptone.AudioBuffer) error {
	audio, err := oto.NewContext(buffer.SampleRate, buffer.NumChannels())
	if err != nil {
		return fmt.Errorf("could not acquire oto AudioContext: %w", err)
	}
	defer audio.Close()
	out := audio.Play(buffer.Source())
	out.Wait()
	return out.Close()
}
