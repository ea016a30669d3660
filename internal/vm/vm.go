package vm

import (
	"errors"
	"fmt"
)

const (
	MemorySize        = 4096
	RegisterCount     = 16
	ScreenWidth       = 64
	ScreenHeight      = 32
	KeyCount          = 16
	DefaultStackLimit = 16

	ProgramStart    = uint16(0x200)
	FontStart       = uint16(0x050)
	FontGlyphSize   = 5
	MaxAddress      = uint16(0x0FFF)
	InstructionSize = 2

	flagRegister = 0x0F
)

var (
	ErrMissingDependency = errors.New("missing dependency")
	ErrUnknownOpcode     = errors.New("unknown opcode")
)

// Deps are the collaborators the CPU operates on. Diagnostics is optional and
// defaults to LogDiagnostics.
type Deps struct {
	Memory      MemoryIO
	Registers   *Registers
	Stack       *Stack
	Timers      TimerStore
	Input       InputSource
	Display     DisplaySink
	Random      RandomSource
	Diagnostics Diagnostics
}

// VM is the CPU core: it owns the program counter and runs one
// fetch/decode/execute cycle per Tick.
type VM struct {
	pc uint16 // Program counter

	memory    MemoryIO
	registers *Registers
	stack     *Stack
	timers    TimerStore
	input     InputSource
	display   DisplaySink
	random    RandomSource
	diag      Diagnostics

	quirks Quirks
}

func New(deps Deps, quirks Quirks) (*VM, error) {
	missing := func(name string) error {
		return fmt.Errorf("vm: %s: %w", name, ErrMissingDependency)
	}

	switch {
	case deps.Memory == nil:
		return nil, missing("memory")
	case deps.Registers == nil:
		return nil, missing("registers")
	case deps.Stack == nil:
		return nil, missing("stack")
	case deps.Timers == nil:
		return nil, missing("timers")
	case deps.Input == nil:
		return nil, missing("input")
	case deps.Display == nil:
		return nil, missing("display")
	case deps.Random == nil:
		return nil, missing("random source")
	}

	diag := deps.Diagnostics
	if diag == nil {
		diag = LogDiagnostics{}
	}

	return &VM{
		pc:        ProgramStart,
		memory:    deps.Memory,
		registers: deps.Registers,
		stack:     deps.Stack,
		timers:    deps.Timers,
		input:     deps.Input,
		display:   deps.Display,
		random:    deps.Random,
		diag:      diag,
		quirks:    quirks,
	}, nil
}

// Init resets the CPU for a new program: V registers and timers are zeroed,
// the stack is emptied and PC points at ProgramStart.
func (vm *VM) Init() {
	for i := range vm.registers.V {
		vm.registers.V[i] = 0
	}
	vm.timers.SetDelay(0)
	vm.timers.SetSound(0)
	vm.stack.Clear()
	vm.pc = ProgramStart
}

func (vm *VM) PC() uint16 {
	return vm.pc
}

func (vm *VM) SetPC(pc uint16) {
	vm.pc = pc
}

// Registers returns a copy of the register file.
func (vm *VM) Registers() Registers {
	return *vm.registers
}

func (vm *VM) Quirks() Quirks {
	return vm.quirks
}

// SetQuirks affects instructions decoded from now on.
func (vm *VM) SetQuirks(q Quirks) {
	vm.quirks = q
}

// Fetch reads the instruction at PC and advances PC past it.
func (vm *VM) Fetch() uint16 {
	hi := vm.memory.Read(vm.pc)
	lo := vm.memory.Read(vm.pc + 1)
	vm.pc += InstructionSize

	return uint16(hi)<<8 | uint16(lo) // Op code is two bytes
}

// Decode maps an instruction word to an operation. It does not touch VM
// state.
func (vm *VM) Decode(opcode uint16) Operation {
	return Operation{
		Opcode: opcode,
		quirks: vm.quirks,
		instr:  decode(opcode),
	}
}

// Execute runs op. Faults (unknown opcodes, stack faults) are reported to
// Diagnostics and returned; the faulting instruction changes nothing.
func (vm *VM) Execute(op Operation) error {
	if op.instr.Execute == nil {
		return nil
	}

	pc := vm.pc - InstructionSize
	vm.diag.Executed(pc, op)

	if err := op.instr.Execute(vm, op); err != nil {
		vm.diag.Fault(pc, op, err)
		return fmt.Errorf("0x%04x: %s: %w", pc, op.Name(), err)
	}
	return nil
}

// Tick performs exactly one fetch/decode/execute cycle.
func (vm *VM) Tick() error {
	return vm.Execute(vm.Decode(vm.Fetch()))
}
