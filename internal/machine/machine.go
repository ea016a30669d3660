package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/kapitanov/chip8/internal/vm"
)

const (
	DefaultInstructionsPerFrame = 11
	// DefaultFrameDuration ticks the timers at 60 Hz.
	DefaultFrameDuration = time.Second / 60

	// MaxROMSize is the room between ProgramStart and the end of memory.
	MaxROMSize = vm.MemorySize - int(vm.ProgramStart)
)

var (
	ErrROMEmpty    = errors.New("rom is empty")
	ErrROMTooLarge = errors.New("rom does not fit in memory")
	ErrBreakpoint  = errors.New("breakpoint")
)

// HAL is everything the machine needs from the host.
type HAL interface {
	ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error
	Draw(gfx []uint8) error
	SetTone(on bool) error
	WaitForNextFrame() error
}

// ToneRecorder receives the buzzer state once per timer quantum.
type ToneRecorder interface {
	Record(on bool)
}

type Config struct {
	Quirks               vm.Quirks
	InstructionsPerFrame int
	StackLimit           int
	AddressMode          vm.AddressMode
	Seed                 uint64
	Strict               bool // Stop on instruction faults
}

func DefaultConfig() Config {
	return Config{
		Quirks:               vm.DefaultQuirks(),
		InstructionsPerFrame: DefaultInstructionsPerFrame,
		StackLimit:           vm.DefaultStackLimit,
		AddressMode:          vm.AddressWrap,
	}
}

type Option func(*Machine)

// WithDiagnostics adds d next to the default log diagnostics.
func WithDiagnostics(d vm.Diagnostics) Option {
	return func(m *Machine) {
		m.extraDiag = append(m.extraDiag, d)
	}
}

func WithToneRecorder(r ToneRecorder) Option {
	return func(m *Machine) {
		m.recorder = r
	}
}

// Machine owns one CHIP-8 session: the CPU, its leaf components and the
// frame scheduler driving them.
type Machine struct {
	config Config

	cpu       *vm.VM
	memory    *vm.Memory
	registers *vm.Registers
	stack     *vm.Stack
	timers    *vm.Timers
	keypad    *vm.Keypad
	display   *vm.Framebuffer

	extraDiag []vm.Diagnostics
	recorder  ToneRecorder

	rom         []byte
	paused      bool
	tone        bool
	looped      bool
	resumeAt    uint16
	resuming    bool
	breakpoints map[uint16]struct{}

	frames uint64
	ticks  uint64
}

func New(config Config, opts ...Option) (*Machine, error) {
	if config.InstructionsPerFrame <= 0 {
		return nil, fmt.Errorf("machine: instructions per frame must be positive, got %d", config.InstructionsPerFrame)
	}
	if config.StackLimit < 0 {
		return nil, fmt.Errorf("machine: stack limit must not be negative, got %d", config.StackLimit)
	}

	m := &Machine{
		config:      config,
		memory:      vm.NewMemory(config.AddressMode),
		registers:   &vm.Registers{},
		stack:       vm.NewStack(config.StackLimit),
		timers:      &vm.Timers{},
		keypad:      &vm.Keypad{},
		display:     &vm.Framebuffer{},
		breakpoints: make(map[uint16]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	diag := append([]vm.Diagnostics{vm.LogDiagnostics{}}, m.extraDiag...)
	cpu, err := vm.New(vm.Deps{
		Memory:      m.memory,
		Registers:   m.registers,
		Stack:       m.stack,
		Timers:      m.timers,
		Input:       m.keypad,
		Display:     m.display,
		Random:      vm.NewRandom(config.Seed),
		Diagnostics: vm.MultiDiagnostics(diag...),
	}, config.Quirks)
	if err != nil {
		return nil, fmt.Errorf("machine: %w", err)
	}
	m.cpu = cpu

	return m, nil
}

// Load validates rom and starts a new session with it. An invalid ROM leaves
// the current session untouched.
func (m *Machine) Load(rom []byte) error {
	switch {
	case len(rom) == 0:
		return ErrROMEmpty
	case len(rom) > MaxROMSize:
		return fmt.Errorf("%w: %d bytes, at most %d allowed", ErrROMTooLarge, len(rom), MaxROMSize)
	}

	m.rom = slices.Clone(rom)
	m.Reset()
	return nil
}

// Reset restarts the loaded program from a clean machine.
func (m *Machine) Reset() {
	slog.Debug("clear memory", "n", vm.MemorySize)
	m.memory.Reset()

	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", vm.FontStart))
	m.memory.PopulateFonts()

	slog.Info("load program", "at", fmt.Sprintf("0x%04x", vm.ProgramStart), "n", len(m.rom))
	m.memory.Load(vm.ProgramStart, m.rom)

	m.registers.Reset()
	m.keypad.Reset()
	m.display.Clear()
	m.cpu.Init()

	m.looped = false
	m.resuming = false
	m.frames = 0
	m.ticks = 0
}

func (m *Machine) Pause() {
	m.paused = true
}

func (m *Machine) Resume() {
	m.paused = false
}

func (m *Machine) TogglePause() {
	m.paused = !m.paused
	slog.Info("pause", "paused", m.paused)
}

func (m *Machine) Paused() bool {
	return m.paused
}

// Run drives frames until the context is done, the HAL fails or a breakpoint
// is hit. The session is not reset on entry.
func (m *Machine) Run(ctx context.Context, hal HAL) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := m.RunFrame(ctx, hal); err != nil {
			return err
		}
	}
}

// RunFrame performs one timer quantum: read input, decrement timers, update
// the buzzer, execute the instruction batch, retire the fresh key, present
// the screen and wait for the next frame. A paused machine only services the
// host.
func (m *Machine) RunFrame(ctx context.Context, hal HAL) error {
	if err := hal.ReadInput(m.keypad.KeyDown, m.keypad.KeyUp); err != nil {
		return err
	}

	if !m.paused {
		if err := m.updateTimers(hal); err != nil {
			return err
		}

		if err := m.runBatch(ctx); err != nil {
			return err
		}

		m.keypad.ConsumeFreshInput()
		m.frames++
	}

	if err := m.present(hal); err != nil {
		return err
	}

	return hal.WaitForNextFrame()
}

// Step is the single-step counterpart of RunFrame: the timer quantum shrinks
// to one instruction.
func (m *Machine) Step(hal HAL) error {
	if err := hal.ReadInput(m.keypad.KeyDown, m.keypad.KeyUp); err != nil {
		return err
	}

	if err := m.updateTimers(hal); err != nil {
		return err
	}

	pc := m.cpu.PC()
	err := m.cpu.Tick()
	m.ticks++
	m.checkLoop(pc)

	m.keypad.ConsumeFreshInput()
	if err != nil && m.config.Strict {
		return err
	}

	return m.present(hal)
}

func (m *Machine) updateTimers(hal HAL) error {
	m.timers.Decrement()

	on := m.timers.SoundActive()
	if m.recorder != nil {
		m.recorder.Record(on)
	}

	if on == m.tone {
		return nil
	}
	if err := hal.SetTone(on); err != nil {
		return err
	}
	m.tone = on
	return nil
}

func (m *Machine) runBatch(ctx context.Context) error {
	for i := 0; i < m.config.InstructionsPerFrame; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pc := m.cpu.PC()
		if m.hitBreakpoint(pc) {
			return fmt.Errorf("%w at 0x%04x", ErrBreakpoint, pc)
		}

		err := m.cpu.Tick()
		m.ticks++
		if err != nil && m.config.Strict {
			return err
		}

		if m.checkLoop(pc) {
			// Nothing else can happen until the next frame.
			break
		}
	}
	return nil
}

// hitBreakpoint lets the instruction a breakpoint stopped on run once the
// machine is driven again.
func (m *Machine) hitBreakpoint(pc uint16) bool {
	if m.resuming {
		m.resuming = false
		if pc == m.resumeAt {
			return false
		}
	}

	if _, ok := m.breakpoints[pc]; !ok {
		return false
	}

	m.resuming = true
	m.resumeAt = pc
	return true
}

// checkLoop reports whether the instruction at pc was a jump to itself.
func (m *Machine) checkLoop(pc uint16) bool {
	if m.cpu.PC() != pc {
		return false
	}

	opcode := uint16(m.memory.Read(pc))<<8 | uint16(m.memory.Read(pc+1))
	if opcode&0xF000 != 0x1000 || opcode&0x0FFF != pc&0x0FFF {
		return false
	}

	if !m.looped {
		m.looped = true
		slog.Info("program looped", "pc", fmt.Sprintf("0x%04x", pc))
	}
	return true
}

func (m *Machine) present(hal HAL) error {
	if !m.display.Dirty() {
		return nil
	}

	if err := hal.Draw(m.display.Pixels()); err != nil {
		return err
	}
	m.display.MarkPresented()
	return nil
}

func (m *Machine) AddBreakpoint(addr uint16) {
	m.breakpoints[addr] = struct{}{}
}

func (m *Machine) RemoveBreakpoint(addr uint16) bool {
	if _, ok := m.breakpoints[addr]; !ok {
		return false
	}
	delete(m.breakpoints, addr)
	return true
}

// Breakpoints returns the breakpoint addresses in ascending order.
func (m *Machine) Breakpoints() []uint16 {
	addrs := make([]uint16, 0, len(m.breakpoints))
	for addr := range m.breakpoints {
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)
	return addrs
}

func (m *Machine) CPU() *vm.VM {
	return m.cpu
}

func (m *Machine) Memory() vm.MemoryIO {
	return m.memory
}

func (m *Machine) Keypad() *vm.Keypad {
	return m.keypad
}

func (m *Machine) Display() *vm.Framebuffer {
	return m.display
}

func (m *Machine) Config() Config {
	return m.config
}

// Looped reports whether the program has reached a jump to itself.
func (m *Machine) Looped() bool {
	return m.looped
}
