package debugger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kapitanov/chip8/internal/hal"
	"github.com/kapitanov/chip8/internal/machine"
	"github.com/kapitanov/chip8/internal/vm"
	"github.com/retroenv/retrogolib/assert"
)

type nullHAL struct {
	readErr error
}

func (h *nullHAL) ReadInput(keyDown, keyUp func(vm.Key)) error { return h.readErr }
func (h *nullHAL) Draw(gfx []uint8) error                      { return nil }
func (h *nullHAL) SetTone(on bool) error                       { return nil }
func (h *nullHAL) WaitForNextFrame() error                     { return nil }

// 0x200: V0 = 5
// 0x202: V0 += 3
// 0x204: call 0x20A
// 0x206: jump 0x206
// 0x208: (padding)
// 0x20A: I = 0x050
// 0x20C: return
var testROM = []byte{
	0x60, 0x05,
	0x70, 0x03,
	0x22, 0x0A,
	0x12, 0x06,
	0x00, 0x00,
	0xA0, 0x50,
	0x00, 0xEE,
}

func runScript(t *testing.T, script string) (*machine.Machine, string) {
	t.Helper()
	return runScriptWith(t, &nullHAL{}, script)
}

func runScriptWith(t *testing.T, h machine.HAL, script string) (*machine.Machine, string) {
	t.Helper()

	trace := NewTrace(8)
	m, err := machine.New(machine.DefaultConfig(), machine.WithDiagnostics(trace))
	assert.NoError(t, err)
	assert.NoError(t, m.Load(testROM))

	var out strings.Builder
	d := New(m, h, trace)
	assert.NoError(t, d.RunCommands(context.Background(), strings.NewReader(script), &out, false))
	return m, out.String()
}

func TestStepAndRepeat(t *testing.T) {
	m, out := runScript(t, "step\n\nstep 1\n")

	assert.Equal(t, uint16(0x20A), m.CPU().PC())
	assert.True(t, strings.Contains(out, ">0202  7003  add v0, 3"))
	assert.True(t, strings.Contains(out, ">0204  220A  jsr 0x020a"))
	assert.Equal(t, uint8(8), m.Snapshot().Registers.V[0])
}

func TestPrefixLookup(t *testing.T) {
	_, out := runScript(t, "reg\nst\nxyz\n")

	assert.True(t, strings.Contains(out, "v0=00 v1=00"))
	assert.True(t, strings.Contains(out, "Command is ambiguous."))
	assert.True(t, strings.Contains(out, "Command not found."))
}

func TestStack(t *testing.T) {
	_, out := runScript(t, "stack\nstep 3\nstack\n")

	assert.True(t, strings.Contains(out, "Stack is empty."))
	assert.True(t, strings.Contains(out, " 0  0206"))
}

func TestMemoryDump(t *testing.T) {
	_, out := runScript(t, "memory 0x200 4\n\n")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "0200  60 05 70 03", lines[1])
	assert.Equal(t, "0204  22 0A 12 06", lines[2])
}

func TestDisasm(t *testing.T) {
	_, out := runScript(t, "bp add 20a\ndisasm 206 4\n")

	assert.True(t, strings.Contains(out, "Breakpoint added at 020A."))
	assert.True(t, strings.Contains(out, " 0206  1206  jmp 0x0206"))
	assert.True(t, strings.Contains(out, " 0208  0000  unknown 0x0000"))
	assert.True(t, strings.Contains(out, "*020A  A050  mvi 0x0050"))
}

func TestBreakpointStopsRun(t *testing.T) {
	m, out := runScript(t, "breakpoint add 20c\nrun\nbreakpoint list\nbreakpoint remove 20c\nbreakpoint list\n")

	assert.True(t, strings.Contains(out, "Breakpoint hit."))
	assert.True(t, strings.Contains(out, "No breakpoints set."))
	assert.Equal(t, uint16(0x20C), m.CPU().PC())
	assert.Equal(t, uint16(0x050), m.Snapshot().Registers.I)
}

func TestRunStopsWhenLooped(t *testing.T) {
	m, out := runScript(t, "run\n")

	assert.True(t, strings.Contains(out, "Program looped."))
	assert.True(t, m.Looped())
	assert.Equal(t, uint16(0x206), m.CPU().PC())
}

func TestFrame(t *testing.T) {
	m, _ := runScript(t, "frame 2\n")
	assert.Equal(t, uint64(2), m.Snapshot().Frames)
}

func TestQuitFromHost(t *testing.T) {
	m, _ := runScriptWith(t, &nullHAL{readErr: hal.ErrQuit}, "frame\nstep\n")
	assert.Equal(t, uint64(0), m.Snapshot().Ticks)
}

func TestKeyAndTrace(t *testing.T) {
	m, out := runScript(t, "key a down\nstep 2\ntrace\nkey 1x up\n")

	assert.True(t, m.Keypad().IsKeyPressed(vm.KeyA))
	assert.True(t, strings.Contains(out, " 0200  6005  mov v0, 5"))
	assert.True(t, strings.Contains(out, " 0202  7003  add v0, 3"))
	assert.True(t, strings.Contains(out, `Invalid key "1x".`))
}

func TestQuirks(t *testing.T) {
	m, _ := runScript(t, "quirks cosmac\nquirks jump on\nquirks inc off\n")
	assert.Equal(t, vm.Quirks{ShiftUsesVY: true, JumpUsesVX: true}, m.CPU().Quirks())
}

func TestResetAndQuit(t *testing.T) {
	m, _ := runScript(t, "step 2\nreset\nquit\nstep\n")
	assert.Equal(t, vm.ProgramStart, m.CPU().PC())
	assert.Equal(t, uint8(0), m.Snapshot().Registers.V[0])
}

func TestScreen(t *testing.T) {
	_, out := runScript(t, "screen\n")
	assert.True(t, strings.Contains(out, strings.Repeat(".", vm.ScreenWidth)))
}

func TestGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.dot")
	_, out := runScript(t, "graph "+path+"\n")

	assert.True(t, strings.Contains(out, "Wrote "))
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "digraph"))
}

func TestGraphReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}

	_, out := runScript(t, "graph /dev/full\n")
	assert.True(t, strings.Contains(out, "ERROR: "))
	assert.False(t, strings.Contains(out, "Wrote "))
}

func TestTraceRing(t *testing.T) {
	trace := NewTrace(2)
	ops := []uint16{0x6001, 0x6102, 0x6203}
	for i, opcode := range ops {
		trace.Executed(0x200+uint16(2*i), vm.Operation{Opcode: opcode})
	}
	trace.Fault(0x204, vm.Operation{Opcode: 0x6203}, errors.New("boom"))

	entries := trace.Last(5)
	assert.Equal(t, 2, len(entries))
	assert.Equal(t, uint16(0x6102), entries[0].Opcode)
	assert.Equal(t, uint16(0x6203), entries[1].Opcode)
	assert.True(t, entries[1].Err != nil)

	trace.Clear()
	assert.Equal(t, 0, trace.Len())
}
