package debugger

import (
	"github.com/kapitanov/chip8/internal/vm"
)

const DefaultTraceSize = 256

type TraceEntry struct {
	PC     uint16
	Opcode uint16
	Name   string
	Err    error
}

// Trace keeps the most recently executed instructions in a ring buffer. It
// is plugged into the CPU as a diagnostics sink.
type Trace struct {
	entries []TraceEntry
	next    int
	full    bool
}

func NewTrace(size int) *Trace {
	if size <= 0 {
		size = DefaultTraceSize
	}
	return &Trace{entries: make([]TraceEntry, size)}
}

func (t *Trace) Executed(pc uint16, op vm.Operation) {
	t.entries[t.next] = TraceEntry{PC: pc, Opcode: op.Opcode, Name: op.Name()}
	t.next++
	if t.next == len(t.entries) {
		t.next = 0
		t.full = true
	}
}

// Fault attaches err to the entry of the faulting instruction.
func (t *Trace) Fault(pc uint16, op vm.Operation, err error) {
	last := t.next - 1
	if last < 0 {
		last = len(t.entries) - 1
	}
	if t.entries[last].PC == pc {
		t.entries[last].Err = err
	}
}

func (t *Trace) Len() int {
	if t.full {
		return len(t.entries)
	}
	return t.next
}

// Last returns up to n entries, oldest first.
func (t *Trace) Last(n int) []TraceEntry {
	if n > t.Len() {
		n = t.Len()
	}

	out := make([]TraceEntry, n)
	for i := range out {
		idx := t.next - n + i
		if idx < 0 {
			idx += len(t.entries)
		}
		out[i] = t.entries[idx]
	}
	return out
}

func (t *Trace) Clear() {
	t.next = 0
	t.full = false
}
