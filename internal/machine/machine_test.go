package machine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kapitanov/chip8/internal/vm"
	"github.com/retroenv/retrogolib/assert"
)

var errStop = errors.New("stop")

type fakeHAL struct {
	readErr error
	pending []func(keyDown, keyUp func(vm.Key))
	draws   int
	tones   []bool
	frames  int
	limit   int
}

func (h *fakeHAL) ReadInput(keyDown, keyUp func(vm.Key)) error {
	if h.readErr != nil {
		return h.readErr
	}
	if len(h.pending) > 0 {
		h.pending[0](keyDown, keyUp)
		h.pending = h.pending[1:]
	}
	return nil
}

func (h *fakeHAL) Draw(gfx []uint8) error {
	h.draws++
	return nil
}

func (h *fakeHAL) SetTone(on bool) error {
	h.tones = append(h.tones, on)
	return nil
}

func (h *fakeHAL) WaitForNextFrame() error {
	h.frames++
	if h.limit > 0 && h.frames >= h.limit {
		return errStop
	}
	return nil
}

type toneLog []bool

func (l *toneLog) Record(on bool) {
	*l = append(*l, on)
}

func newTestMachine(t *testing.T, config Config, rom ...byte) *Machine {
	t.Helper()

	m, err := New(config)
	assert.NoError(t, err)
	assert.NoError(t, m.Load(rom))
	return m
}

func TestLoadRejectsInvalidROM(t *testing.T) {
	m, err := New(DefaultConfig())
	assert.NoError(t, err)

	assert.True(t, errors.Is(m.Load(nil), ErrROMEmpty))
	assert.True(t, errors.Is(m.Load(make([]byte, 3986)), ErrROMTooLarge))
	assert.True(t, errors.Is(m.Load(make([]byte, MaxROMSize+1)), ErrROMTooLarge))
	assert.NoError(t, m.Load(make([]byte, MaxROMSize)))
}

func TestInvalidROMLeavesSessionIntact(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), 0x60, 0x05)
	assert.NoError(t, m.Step(&fakeHAL{}))

	assert.True(t, m.Load(nil) != nil)
	assert.Equal(t, uint8(5), m.Snapshot().Registers.V[0])
	assert.Equal(t, uint8(0x60), m.Memory().Read(vm.ProgramStart))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.InstructionsPerFrame = 0
	_, err := New(config)
	assert.True(t, err != nil)

	config = DefaultConfig()
	config.StackLimit = -1
	_, err = New(config)
	assert.True(t, err != nil)
}

func TestResetLoadsFontAndProgram(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), 0x60, 0x05, 0x70, 0x03, 0xA0, 0x50)

	assert.Equal(t, uint8(0xF0), m.Memory().Read(vm.FontStart))
	assert.Equal(t, []uint8{0x60, 0x05}, m.Memory().ReadRange(vm.ProgramStart, 2))
	assert.Equal(t, vm.ProgramStart, m.CPU().PC())
	assert.True(t, m.Display().Dirty())
}

func TestRunFrame(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), 0x60, 0x05, 0x70, 0x03, 0xA0, 0x50)
	hal := &fakeHAL{}

	assert.NoError(t, m.RunFrame(context.Background(), hal))

	s := m.Snapshot()
	assert.Equal(t, uint8(8), s.Registers.V[0])
	assert.Equal(t, uint16(0x050), s.Registers.I)
	assert.Equal(t, uint64(1), s.Frames)
	assert.Equal(t, uint64(DefaultInstructionsPerFrame), s.Ticks)
	assert.Equal(t, 1, hal.draws)
	assert.Equal(t, 1, hal.frames)
	assert.False(t, m.Display().Dirty())
}

func TestTimersDecrementOncePerFrame(t *testing.T) {
	// V0 = 10; delay = V0; sound = V0; spin
	m := newTestMachine(t, DefaultConfig(), 0x60, 0x0A, 0xF0, 0x15, 0xF0, 0x18, 0x12, 0x06)
	var tones toneLog
	m.recorder = &tones
	hal := &fakeHAL{}

	assert.NoError(t, m.RunFrame(context.Background(), hal))
	assert.Equal(t, uint8(10), m.Snapshot().Delay)

	assert.NoError(t, m.RunFrame(context.Background(), hal))
	assert.Equal(t, uint8(9), m.Snapshot().Delay)
	assert.Equal(t, uint8(9), m.Snapshot().Sound)

	assert.Equal(t, []bool{true}, hal.tones)
	assert.Equal(t, []bool{false, true}, []bool(tones))
}

func TestDefaultCadence(t *testing.T) {
	// V0 = 60; delay = V0; spin
	m := newTestMachine(t, DefaultConfig(), 0x60, 0x3C, 0xF0, 0x15, 0x12, 0x04)
	hal := &fakeHAL{}

	assert.NoError(t, m.RunFrame(context.Background(), hal))
	assert.Equal(t, uint8(60), m.Snapshot().Delay)

	frames := 0
	for m.Snapshot().Delay > 0 {
		assert.NoError(t, m.RunFrame(context.Background(), hal))
		frames++
	}
	assert.Equal(t, 60, frames)

	elapsed := time.Duration(frames) * DefaultFrameDuration
	assert.True(t, elapsed <= time.Second)
	assert.True(t, time.Second-elapsed < time.Millisecond)

	perSecond := DefaultInstructionsPerFrame * int(time.Second/DefaultFrameDuration)
	assert.Equal(t, 660, perSecond)
}

func TestToneTurnsOffWhenSoundExpires(t *testing.T) {
	// V0 = 1; sound = V0; spin
	m := newTestMachine(t, DefaultConfig(), 0x60, 0x01, 0xF0, 0x18, 0x12, 0x04)
	hal := &fakeHAL{}

	for i := 0; i < 3; i++ {
		assert.NoError(t, m.RunFrame(context.Background(), hal))
	}
	assert.Equal(t, []bool(nil), hal.tones)

	m.timers.SetSound(2)
	for i := 0; i < 3; i++ {
		assert.NoError(t, m.RunFrame(context.Background(), hal))
	}
	assert.Equal(t, []bool{true, false}, hal.tones)
}

func TestFreshKeyConsumedPerFrame(t *testing.T) {
	// wait for key into V3, then spin
	m := newTestMachine(t, DefaultConfig(), 0xF3, 0x0A, 0x12, 0x02)
	hal := &fakeHAL{}

	assert.NoError(t, m.RunFrame(context.Background(), hal))
	assert.Equal(t, vm.ProgramStart, m.CPU().PC())

	hal.pending = append(hal.pending, func(keyDown, keyUp func(vm.Key)) {
		keyDown(vm.KeyB)
		keyUp(vm.KeyB)
	})
	assert.NoError(t, m.RunFrame(context.Background(), hal))
	assert.Equal(t, uint8(vm.KeyB), m.Snapshot().Registers.V[3])
	assert.Equal(t, uint16(0x202), m.CPU().PC())

	_, ok := m.Keypad().LastFreshInput()
	assert.False(t, ok)
}

func TestSelfJumpEndsBatch(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), 0x60, 0x01, 0x12, 0x02)
	hal := &fakeHAL{}

	assert.False(t, m.Looped())
	assert.NoError(t, m.RunFrame(context.Background(), hal))
	assert.True(t, m.Looped())
	assert.Equal(t, uint64(2), m.Snapshot().Ticks)

	m.Reset()
	assert.False(t, m.Looped())
}

func TestPausedFrameOnlyServicesHost(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), 0x60, 0x05)
	hal := &fakeHAL{}

	m.Pause()
	assert.True(t, m.Paused())
	assert.NoError(t, m.RunFrame(context.Background(), hal))
	assert.Equal(t, uint64(0), m.Snapshot().Ticks)
	assert.Equal(t, 1, hal.draws)

	m.TogglePause()
	assert.False(t, m.Paused())
}

func TestStep(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), 0x60, 0x05, 0x70, 0x03)
	hal := &fakeHAL{}

	assert.NoError(t, m.Step(hal))
	assert.Equal(t, uint16(0x202), m.CPU().PC())
	assert.Equal(t, uint8(5), m.Snapshot().Registers.V[0])

	assert.NoError(t, m.Step(hal))
	assert.Equal(t, uint8(8), m.Snapshot().Registers.V[0])
	assert.Equal(t, uint64(2), m.Snapshot().Ticks)
}

func TestStepReadsInput(t *testing.T) {
	// wait for key into V3, then spin
	m := newTestMachine(t, DefaultConfig(), 0xF3, 0x0A, 0x12, 0x02)
	hal := &fakeHAL{}

	assert.NoError(t, m.Step(hal))
	assert.Equal(t, vm.ProgramStart, m.CPU().PC())

	hal.pending = append(hal.pending, func(keyDown, keyUp func(vm.Key)) {
		keyDown(vm.Key7)
		keyUp(vm.Key7)
	})
	assert.NoError(t, m.Step(hal))
	assert.Equal(t, uint8(vm.Key7), m.Snapshot().Registers.V[3])
	assert.Equal(t, uint16(0x202), m.CPU().PC())

	hal.readErr = errStop
	assert.True(t, errors.Is(m.Step(hal), errStop))
	assert.Equal(t, uint64(2), m.Snapshot().Ticks)
}

func TestStrictStopsOnFault(t *testing.T) {
	rom := []byte{0x00, 0x00, 0x60, 0x05}

	m := newTestMachine(t, DefaultConfig(), rom...)
	assert.NoError(t, m.Step(&fakeHAL{}))
	assert.NoError(t, m.Step(&fakeHAL{}))
	assert.Equal(t, uint8(5), m.Snapshot().Registers.V[0])

	config := DefaultConfig()
	config.Strict = true
	m = newTestMachine(t, config, rom...)
	err := m.RunFrame(context.Background(), &fakeHAL{})
	assert.True(t, errors.Is(err, vm.ErrUnknownOpcode))
	assert.Equal(t, uint16(0x202), m.CPU().PC())
}

func TestBreakpoint(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), 0x60, 0x01, 0x61, 0x02, 0x62, 0x03, 0x12, 0x06)
	hal := &fakeHAL{}

	m.AddBreakpoint(0x204)
	m.AddBreakpoint(0x200 + 0x100)
	assert.Equal(t, []uint16{0x204, 0x300}, m.Breakpoints())

	err := m.Run(context.Background(), hal)
	assert.True(t, errors.Is(err, ErrBreakpoint))
	assert.Equal(t, uint16(0x204), m.CPU().PC())
	assert.Equal(t, uint8(0), m.Snapshot().Registers.V[2])

	hal.limit = 1
	err = m.Run(context.Background(), hal)
	assert.True(t, errors.Is(err, errStop))
	assert.Equal(t, uint8(3), m.Snapshot().Registers.V[2])

	assert.True(t, m.RemoveBreakpoint(0x300))
	assert.False(t, m.RemoveBreakpoint(0x300))
}

func TestRunStopsOnCancel(t *testing.T) {
	m := newTestMachine(t, DefaultConfig(), 0x12, 0x00)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Run(ctx, &fakeHAL{})
	assert.True(t, errors.Is(err, context.Canceled))
}

type countingDiagnostics struct {
	executed int
}

func (d *countingDiagnostics) Executed(pc uint16, op vm.Operation) {
	d.executed++
}

func (d *countingDiagnostics) Fault(pc uint16, op vm.Operation, err error) {}

func TestWithDiagnostics(t *testing.T) {
	diag := &countingDiagnostics{}
	m, err := New(DefaultConfig(), WithDiagnostics(diag))
	assert.NoError(t, err)
	assert.NoError(t, m.Load([]byte{0x60, 0x01, 0x61, 0x02}))

	assert.NoError(t, m.Step(&fakeHAL{}))
	assert.NoError(t, m.Step(&fakeHAL{}))
	assert.Equal(t, 2, diag.executed)
}
