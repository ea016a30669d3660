package hal

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kapitanov/chip8/internal/vm"
	"github.com/pkg/term"
)

const (
	// A terminal reports key presses only. A key counts as held for this
	// many frames after its last press, then it is released.
	DefaultHoldFrames = 8

	ansiHome       = "\x1b[H"
	ansiClear      = "\x1b[2J"
	ansiHideCursor = "\x1b[?25l"
	ansiShowCursor = "\x1b[?25h"
)

// Terminal runs the machine in a raw mode terminal and draws the screen with
// half block characters, two pixel rows per line.
type Terminal struct {
	tty    *term.Term
	output io.Writer
	pacer  *Pacer

	input chan []byte
	done  chan struct{}
	keys  *heldKeys
}

func NewTerminal(path string, output io.Writer, frame time.Duration) (*Terminal, error) {
	tty, err := term.Open(path, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal %q: %w", path, err)
	}
	slog.Debug("hal: open terminal", "path", path)

	t := &Terminal{
		tty:    tty,
		output: output,
		pacer:  NewPacer(frame),
		input:  make(chan []byte, 16),
		done:   make(chan struct{}),
		keys:   newHeldKeys(DefaultHoldFrames),
	}

	go forwardInput(tty, t.input, t.done)

	fmt.Fprint(output, ansiClear+ansiHideCursor)
	return t, nil
}

// forwardInput sends raw reads to input until r fails or done is closed,
// then closes input.
func forwardInput(r io.Reader, input chan<- []byte, done <-chan struct{}) {
	defer close(input)

	buf := make([]byte, 32)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return
		}

		select {
		case input <- bytes.Clone(buf[:n]):
		case <-done:
			return
		}
	}
}

func (t *Terminal) Shutdown() {
	close(t.done)
	fmt.Fprint(t.output, ansiShowCursor+"\r\n")

	if err := t.tty.Restore(); err != nil {
		slog.Error("failed to restore terminal", "err", err)
	}
	if err := t.tty.Close(); err != nil {
		slog.Error("failed to close terminal", "err", err)
	}
}

func (t *Terminal) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	t.keys.tick(keyUp)

	for {
		select {
		case chunk, ok := <-t.input:
			if !ok {
				return ErrQuit
			}

			keys, err := decodeTerminalInput(chunk)
			if err != nil {
				return err
			}
			for _, key := range keys {
				t.keys.press(key, keyDown)
			}

		default:
			return nil
		}
	}
}

// decodeTerminalInput turns one raw read into keypad presses or a control
// request. Escape sequences such as arrow keys are ignored; a lone escape
// quits.
func decodeTerminalInput(chunk []byte) ([]vm.Key, error) {
	if len(chunk) == 0 {
		return nil, nil
	}
	if chunk[0] == 0x1b {
		if len(chunk) == 1 {
			return nil, ErrQuit
		}
		return nil, nil
	}

	var keys []vm.Key
	for _, b := range chunk {
		switch b {
		case 0x03: // Ctrl-C
			return nil, ErrQuit
		case 0x7f, 0x08:
			return nil, ErrReboot
		case 'p', 'P':
			return nil, ErrPause
		}

		if key, ok := KeyForRune(rune(b)); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (t *Terminal) Draw(gfx []uint8) error {
	_, err := io.WriteString(t.output, ansiHome+RenderHalfBlocks(gfx))
	return err
}

// SetTone rings the terminal bell when the buzzer starts.
func (t *Terminal) SetTone(on bool) error {
	if !on {
		return nil
	}
	_, err := io.WriteString(t.output, "\a")
	return err
}

func (t *Terminal) WaitForNextFrame() error {
	t.pacer.Wait()
	return nil
}

// RenderHalfBlocks renders the screen as ScreenHeight/2 lines of text. Lines
// end in "\r\n" since a raw terminal does not translate newlines.
func RenderHalfBlocks(gfx []uint8) string {
	var sb strings.Builder
	for y := 0; y < vm.ScreenHeight; y += 2 {
		for x := 0; x < vm.ScreenWidth; x++ {
			top := gfx[x+y*vm.ScreenWidth] != 0
			bottom := gfx[x+(y+1)*vm.ScreenWidth] != 0

			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString("\r\n")
	}
	return sb.String()
}

// heldKeys emulates key releases for input that only reports presses.
type heldKeys struct {
	hold int
	left [vm.KeyCount]int
}

func newHeldKeys(hold int) *heldKeys {
	return &heldKeys{hold: hold}
}

func (h *heldKeys) press(key vm.Key, keyDown func(vm.Key)) {
	if h.left[key] == 0 {
		keyDown(key)
	}
	h.left[key] = h.hold
}

// tick ages every held key by one frame and releases the expired ones.
func (h *heldKeys) tick(keyUp func(vm.Key)) {
	for i, n := range h.left {
		if n == 0 {
			continue
		}
		h.left[i] = n - 1
		if n == 1 {
			keyUp(vm.Key(i))
		}
	}
}
