package machine

import (
	"slices"

	"github.com/kapitanov/chip8/internal/vm"
)

// Snapshot is a copy of the machine state that is safe to hand to another
// goroutine.
type Snapshot struct {
	PC        uint16
	Registers vm.Registers
	Stack     []uint16
	Delay     uint8
	Sound     uint8
	Quirks    vm.Quirks
	Pixels    []uint8
	Frames    uint64
	Ticks     uint64
	Paused    bool
	Looped    bool
}

func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		PC:        m.cpu.PC(),
		Registers: m.cpu.Registers(),
		Stack:     m.stack.Frames(),
		Delay:     m.timers.Delay(),
		Sound:     m.timers.Sound(),
		Quirks:    m.cpu.Quirks(),
		Pixels:    slices.Clone(m.display.Pixels()),
		Frames:    m.frames,
		Ticks:     m.ticks,
		Paused:    m.paused,
		Looped:    m.looped,
	}
}
