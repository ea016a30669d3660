package hal

import (
	"slices"
	"time"

	"github.com/kapitanov/chip8/internal/vm"
)

// Headless keeps the last presented frame in memory and quits after a fixed
// number of frames. A zero limit runs until stopped.
type Headless struct {
	limit  int
	frames int
	pacer  *Pacer

	screen []uint8
	draws  int
	tones  int
}

func NewHeadless(limit int, frame time.Duration) *Headless {
	return &Headless{
		limit:  limit,
		pacer:  NewPacer(frame),
		screen: make([]uint8, vm.ScreenWidth*vm.ScreenHeight),
	}
}

func (h *Headless) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	return nil
}

func (h *Headless) Draw(gfx []uint8) error {
	copy(h.screen, gfx)
	h.draws++
	return nil
}

func (h *Headless) SetTone(on bool) error {
	if on {
		h.tones++
	}
	return nil
}

func (h *Headless) WaitForNextFrame() error {
	h.frames++
	if h.limit > 0 && h.frames >= h.limit {
		return ErrQuit
	}

	h.pacer.Wait()
	return nil
}

// Screen returns a copy of the last presented frame.
func (h *Headless) Screen() []uint8 {
	return slices.Clone(h.screen)
}

func (h *Headless) Frames() int {
	return h.frames
}

// Beeps is the number of times the buzzer was switched on.
func (h *Headless) Beeps() int {
	return h.tones
}
