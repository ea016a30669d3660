package vm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
)

// Registers holds V0-VF and the index register.
type Registers struct {
	V [RegisterCount]uint8 // V registers (V0-VF)
	I uint16               // Index register
}

func (r *Registers) Reset() {
	for i := range r.V {
		r.V[i] = 0
	}
	r.I = 0
}

func (r Registers) String() string {
	var sb strings.Builder
	for i, v := range r.V {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "v%x=%02x", i, v)
	}
	fmt.Fprintf(&sb, " i=%04x", r.I)
	return sb.String()
}

// Stack is the return address stack. A limit of zero leaves it unbounded.
type Stack struct {
	frames []uint16
	limit  int
}

func NewStack(limit int) *Stack {
	return &Stack{limit: limit}
}

func (s *Stack) Push(addr uint16) error {
	if s.limit > 0 && len(s.frames) >= s.limit {
		return ErrStackOverflow
	}
	s.frames = append(s.frames, addr)
	return nil
}

func (s *Stack) Pop() (uint16, error) {
	if len(s.frames) == 0 {
		return 0, ErrStackUnderflow
	}
	addr := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return addr, nil
}

// Top returns the most recently pushed address without removing it.
func (s *Stack) Top() (uint16, bool) {
	if len(s.frames) == 0 {
		return 0, false
	}
	return s.frames[len(s.frames)-1], true
}

func (s *Stack) Clear() {
	s.frames = s.frames[:0]
}

func (s *Stack) Len() int {
	return len(s.frames)
}

func (s *Stack) Limit() int {
	return s.limit
}

// Frames returns a copy of the stack, bottom first.
func (s *Stack) Frames() []uint16 {
	return append([]uint16(nil), s.frames...)
}

// TimerStore is the delay/sound countdown pair.
type TimerStore interface {
	Delay() uint8
	SetDelay(v uint8)
	Sound() uint8
	SetSound(v uint8)
	Decrement()
}

type Timers struct {
	delay uint8 // Delay timer
	sound uint8 // Sound timer
}

func (t *Timers) Delay() uint8      { return t.delay }
func (t *Timers) SetDelay(v uint8)  { t.delay = v }
func (t *Timers) Sound() uint8      { return t.sound }
func (t *Timers) SetSound(v uint8)  { t.sound = v }
func (t *Timers) SoundActive() bool { return t.sound > 0 }

// Decrement counts both timers down by one, stopping at zero.
func (t *Timers) Decrement() {
	if t.delay > 0 {
		t.delay--
	}
	if t.sound > 0 {
		t.sound--
	}
}
