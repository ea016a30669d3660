package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kapitanov/chip8/internal/audio"
	"github.com/kapitanov/chip8/internal/hal"
	"github.com/kapitanov/chip8/internal/machine"
	"github.com/kapitanov/chip8/internal/vm"
)

const (
	frontendSDL      = "sdl"
	frontendTerminal = "tty"
	frontendHeadless = "headless"

	ttyPath = "/dev/tty"
)

type frontend struct {
	hal      machine.HAL
	shutdown func()
}

func newFrontend(opts options, title string, tone *audio.Tone) (frontend, error) {
	switch opts.frontend {
	case frontendSDL:
		h, err := hal.NewSDL(title, opts.frame, tone)
		if err != nil {
			return frontend{}, err
		}
		return frontend{hal: h, shutdown: h.Shutdown}, nil

	case frontendTerminal:
		if opts.debug {
			return frontend{}, errors.New("the debugger reads commands from the terminal, use the sdl or headless frontend")
		}

		h, err := hal.NewTerminal(ttyPath, os.Stdout, opts.frame)
		if err != nil {
			return frontend{}, err
		}
		return frontend{hal: h, shutdown: h.Shutdown}, nil

	case frontendHeadless:
		h := hal.NewHeadless(opts.frames, opts.frame)

		// The final frame goes to stdout.
		shutdown := func() {
			fmt.Print(vm.RenderText(h.Screen()))
		}
		return frontend{hal: h, shutdown: shutdown}, nil
	}

	return frontend{}, fmt.Errorf("unknown frontend %q", opts.frontend)
}
