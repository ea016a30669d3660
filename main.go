package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kapitanov/chip8/internal/audio"
	"github.com/kapitanov/chip8/internal/debugger"
	"github.com/kapitanov/chip8/internal/hal"
	"github.com/kapitanov/chip8/internal/machine"
	"github.com/kapitanov/chip8/internal/statsview"
	"github.com/kapitanov/chip8/internal/vm"
	"github.com/spf13/cobra"
)

type options struct {
	verbose bool

	quirks  string
	shiftVY bool
	jumpVX  bool
	incI    bool

	ipf        int
	frame      time.Duration
	stackLimit int
	memory     string
	seed       uint64
	strict     bool

	frontend string
	frames   int
	tone     string
	wav      string

	debug     bool
	statsview bool
}

func main() {
	var opts options
	cmd := newRootCommand(&opts)

	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")

	flags.StringVar(&opts.quirks, "quirks", "default", "quirks preset ("+strings.Join(vm.QuirksPresetNames(), ", ")+")")
	flags.BoolVar(&opts.shiftVY, "shift-vy", false, "8XY6/8XYE shift VY instead of VX")
	flags.BoolVar(&opts.jumpVX, "jump-vx", false, "BNNN jumps to NNN plus VX instead of V0")
	flags.BoolVar(&opts.incI, "inc-i", false, "FX55/FX65 advance I past the registers")

	flags.IntVar(&opts.ipf, "ipf", machine.DefaultInstructionsPerFrame, "instructions per frame")
	flags.DurationVar(&opts.frame, "frame", machine.DefaultFrameDuration, "frame duration")
	flags.IntVar(&opts.stackLimit, "stack-limit", vm.DefaultStackLimit, "call stack depth, 0 for unbounded")
	flags.StringVar(&opts.memory, "memory", vm.AddressWrap.String(), "addresses past 0xFFF: wrap or strict")
	flags.Uint64Var(&opts.seed, "seed", 0, "random seed, 0 picks one")
	flags.BoolVar(&opts.strict, "strict", false, "stop on instruction faults")

	flags.StringVar(&opts.frontend, "frontend", frontendSDL, "host frontend (sdl, tty, headless)")
	flags.IntVar(&opts.frames, "frames", 0, "number of frames a headless run lasts, 0 for no limit")
	flags.StringVar(&opts.tone, "tone", "", "WAV or MP3 clip to use as the buzzer")
	flags.StringVar(&opts.wav, "wav", "", "record the buzzer to a WAV file, at most "+audio.MaxRecording.String())

	flags.BoolVar(&opts.debug, "debug", false, "start in the step debugger")
	flags.BoolVar(&opts.statsview, "statsview", false, "serve runtime statistics on "+statsview.DefaultAddress)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		loggerOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if opts.verbose {
			loggerOpts.Level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))

		config, err := opts.machineConfig(cmd)
		if err != nil {
			return err
		}

		return run(args[0], config, *opts)
	}

	return cmd
}

// machineConfig applies the quirk preset first and individual quirk flags
// on top of it.
func (o options) machineConfig(cmd *cobra.Command) (machine.Config, error) {
	config := machine.DefaultConfig()

	q, err := vm.QuirksPreset(o.quirks)
	if err != nil {
		return config, err
	}
	if cmd.Flags().Changed("shift-vy") {
		q.ShiftUsesVY = o.shiftVY
	}
	if cmd.Flags().Changed("jump-vx") {
		q.JumpUsesVX = o.jumpVX
	}
	if cmd.Flags().Changed("inc-i") {
		q.IncrementIndex = o.incI
	}

	mode, err := vm.ParseAddressMode(o.memory)
	if err != nil {
		return config, err
	}

	config.Quirks = q
	config.InstructionsPerFrame = o.ipf
	config.StackLimit = o.stackLimit
	config.AddressMode = mode
	config.Seed = o.seed
	config.Strict = o.strict
	return config, nil
}

func run(path string, config machine.Config, opts options) error {
	if opts.statsview {
		statsview.Launch(statsview.DefaultAddress, os.Stderr)
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to load file %q: %w", path, err)
	}

	tone := audio.Square(audio.ToneFrequency)
	if opts.tone != "" {
		tone, err = audio.LoadTone(opts.tone)
		if err != nil {
			return err
		}
	}

	var machineOpts []machine.Option
	if opts.wav != "" {
		rec := audio.NewRecorder(opts.wav, tone, opts.frame)
		defer func() {
			if err := rec.Close(); err != nil {
				slog.Error("failed to write recording", "err", err)
			}
		}()
		machineOpts = append(machineOpts, machine.WithToneRecorder(rec))
	}

	var trace *debugger.Trace
	if opts.debug {
		trace = debugger.NewTrace(debugger.DefaultTraceSize)
		machineOpts = append(machineOpts, machine.WithDiagnostics(trace))
	}

	m, err := machine.New(config, machineOpts...)
	if err != nil {
		return err
	}
	if err := m.Load(bs); err != nil {
		return fmt.Errorf("unable to load rom %q: %w", path, err)
	}

	fe, err := newFrontend(opts, "CHIP-8 - "+filepath.Base(path), tone)
	if err != nil {
		return fmt.Errorf("unable to initialize hal: %w", err)
	}
	defer fe.shutdown()

	if opts.debug {
		d := debugger.New(m, fe.hal, trace)
		return d.RunCommands(context.Background(), os.Stdin, os.Stdout, true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		err = m.Run(ctx, fe.hal)

		switch {
		case errors.Is(err, hal.ErrQuit), errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, hal.ErrReboot):
			slog.Info("reboot")
			m.Reset()
		case errors.Is(err, hal.ErrPause):
			m.TogglePause()
		default:
			return err
		}
	}
}
