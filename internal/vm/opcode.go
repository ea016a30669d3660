package vm

import (
	"fmt"
)

// Operation is a decoded instruction bound to the quirks in effect when it
// was decoded.
type Operation struct {
	Opcode uint16

	quirks Quirks
	instr  instruction
}

// Name returns the disassembled form of the operation.
func (op Operation) Name() string {
	if op.instr.Name == nil {
		return fmt.Sprintf("unknown 0x%04X", op.Opcode)
	}
	return op.instr.Name(op)
}

// Known reports whether the opcode maps to an implemented instruction.
func (op Operation) Known() bool {
	return op.instr.Execute != nil && !op.instr.unknown
}

func (op Operation) X() uint8    { return uint8((op.Opcode & 0x0F00) >> 8) }
func (op Operation) Y() uint8    { return uint8((op.Opcode & 0x00F0) >> 4) }
func (op Operation) N() uint8    { return uint8(op.Opcode & 0x000F) }
func (op Operation) NN() uint8   { return uint8(op.Opcode & 0x00FF) }
func (op Operation) NNN() uint16 { return op.Opcode & 0x0FFF }

// Disassemble returns the mnemonic for an instruction word.
func Disassemble(opcode uint16) string {
	return Operation{Opcode: opcode, instr: decode(opcode)}.Name()
}

type instruction struct {
	Name    func(op Operation) string
	Execute func(vm *VM, op Operation) error
	unknown bool
}

func decode(opcode uint16) instruction {
	switch opcode & 0xF000 {
	case 0x0000:
		switch opcode {
		case 0x00E0:
			// 00E0 - Clear screen
			return clsInstruction

		case 0x00EE:
			// 00EE - Return from subroutine
			return rtsInstruction
		}

	case 0x1000:
		// 1NNN - Jumps to address NNN
		return jmpInstruction

	case 0x2000:
		// 2NNN - Calls subroutine at NNN
		return jsrInstruction

	case 0x3000:
		// 3XNN - Skips the next instruction if VX equals NN
		return skeq1Instruction

	case 0x4000:
		// 4XNN - Skips the next instruction if VX does not equal NN
		return skne1Instruction

	case 0x5000:
		// 5XY0 - Skips the next instruction if VX equals VY
		return skeq2Instruction

	case 0x6000:
		// 6XNN - Sets VX to NN
		return mov1Instruction

	case 0x7000:
		// 7XNN - Adds NN to VX, VF untouched
		return add1Instruction

	case 0x8000:
		// 8XY_
		switch opcode & 0x000F {
		case 0x0000:
			// 8XY0 - Sets VX to the value of VY
			return mov2Instruction

		case 0x0001:
			// 8XY1 - Sets VX to (VX OR VY)
			return orInstruction

		case 0x0002:
			// 8XY2 - Sets VX to (VX AND VY)
			return andInstruction

		case 0x0003:
			// 8XY3 - Sets VX to (VX XOR VY)
			return xorInstruction

		case 0x0004:
			// 8XY4 - Adds VY to VX. VF is set to 1 when there's a carry, and to 0 when there isn't.
			return add2Instruction

		case 0x0005:
			// 8XY5 - VY is subtracted from VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return subInstruction

		case 0x0006:
			// 8XY6 - Shifts VX right by one. VF is set to the bit shifted out.
			return shrInstruction

		case 0x0007:
			// 8XY7 - Sets VX to VY minus VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return rsbInstruction

		case 0x000E:
			// 8XYE - Shifts VX left by one. VF is set to the bit shifted out.
			return shlInstruction
		}

	case 0x9000:
		// 9XY0 - Skips the next instruction if VX doesn't equal VY
		return skne2Instruction

	case 0xA000:
		// ANNN - Sets I to the address NNN
		return mviInstruction

	case 0xB000:
		// BNNN - Jumps to the address NNN plus V0 (or VX)
		return jmiInstruction

	case 0xC000:
		// CXNN - Sets VX to a random number, masked by NN
		return randInstruction

	case 0xD000:
		// DXYN: Draws a sprite at coordinate (VX, VY) that has a width of 8
		// pixels and a height of N pixels, read from memory starting at I.
		// VF is set to 1 if any screen pixels are flipped from set to unset
		// when the sprite is drawn, and to 0 if that doesn't happen.
		return spriteInstruction

	case 0xE000:
		switch opcode & 0x00FF {
		case 0x009E:
			// EX9E - Skips the next instruction if the key stored in VX is pressed
			return skprInstruction

		case 0x00A1:
			// EXA1 - Skips the next instruction if the key stored in VX isn't pressed
			return skupInstruction
		}

	case 0xF000:
		switch opcode & 0x00FF {
		case 0x0007:
			// FX07 - Sets VX to the value of the delay timer
			return gdelayInstruction

		case 0x000A:
			// FX0A - A key release is awaited, and then stored in VX
			return keyInstruction

		case 0x0015:
			// FX15 - Sets the delay timer to VX
			return sdelayInstruction

		case 0x0018:
			// FX18 - Sets the sound timer to VX
			return ssoundInstruction

		case 0x001E:
			// FX1E - Adds VX to I. VF is set to 1 when I passes 0xFFF,
			// otherwise VF is left alone.
			return adiInstruction

		case 0x0029:
			// FX29 - Sets I to the location of the font glyph for the
			// hex digit in VX
			return fontInstruction

		case 0x0033:
			// FX33 - Stores the binary-coded decimal representation of VX
			// at the addresses I, I plus 1, and I plus 2
			return bcdInstruction

		case 0x0055:
			// FX55 - Stores V0 to VX in memory starting at address I
			return strInstruction

		case 0x0065:
			// FX65 - Reads memory starting at address I into V0...VX
			return ldrInstruction
		}
	}

	return unknownInstruction
}

func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.pc += InstructionSize
	}
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

var (
	// 00E0	cls	Clear the screen
	clsInstruction = instruction{
		Name: func(op Operation) string {
			return "cls"
		},
		Execute: func(vm *VM, op Operation) error {
			vm.display.Clear()
			return nil
		},
	}

	// 00EE	rts	return from subroutine call
	rtsInstruction = instruction{
		Name: func(op Operation) string {
			return "rts"
		},
		Execute: func(vm *VM, op Operation) error {
			pc, err := vm.stack.Pop()
			if err != nil {
				return err
			}
			vm.pc = pc
			return nil
		},
	}

	// 1xxx	jmp xxx	jump to address xxx
	jmpInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("jmp 0x%04x", op.NNN())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.pc = op.NNN()
			return nil
		},
	}

	// 2xxx	jsr xxx	jump to subroutine at address xxx
	jsrInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("jsr 0x%04x", op.NNN())
		},
		Execute: func(vm *VM, op Operation) error {
			if err := vm.stack.Push(vm.pc); err != nil {
				return err
			}
			vm.pc = op.NNN()
			return nil
		},
	}

	// 3rxx	skeq vr,xx	skip if register r = constant
	skeq1Instruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("skeq v%x, %d", op.X(), op.NN())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.skipIf(vm.registers.V[op.X()] == op.NN())
			return nil
		},
	}

	// 4rxx	skne vr,xx	skip if register r <> constant
	skne1Instruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("skne v%x, %d", op.X(), op.NN())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.skipIf(vm.registers.V[op.X()] != op.NN())
			return nil
		},
	}

	// 5ry0	skeq vr,vy	skip if register r = register y
	skeq2Instruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("skeq v%x, v%x", op.X(), op.Y())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.skipIf(vm.registers.V[op.X()] == vm.registers.V[op.Y()])
			return nil
		},
	}

	// 9ry0	skne vr,vy	skip if register r <> register y
	skne2Instruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("skne v%x, v%x", op.X(), op.Y())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.skipIf(vm.registers.V[op.X()] != vm.registers.V[op.Y()])
			return nil
		},
	}

	// 6rxx	mov vr,xx	move constant to register r
	mov1Instruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("mov v%x, %d", op.X(), op.NN())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.V[op.X()] = op.NN()
			return nil
		},
	}

	// 7rxx	add vr,xx	add constant to register r	No carry generated
	add1Instruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("add v%x, %d", op.X(), op.NN())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.V[op.X()] += op.NN()
			return nil
		},
	}

	// 8ry0	mov vr,vy	move register vy into vr
	mov2Instruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("mov v%x, v%x", op.X(), op.Y())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.V[op.X()] = vm.registers.V[op.Y()]
			return nil
		},
	}

	// 8ry1	or rx,ry	or register vy into register vx
	orInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("or v%x, v%x", op.X(), op.Y())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.V[op.X()] |= vm.registers.V[op.Y()]
			return nil
		},
	}

	// 8ry2	and rx,ry	and register vy into register vx
	andInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("and v%x, v%x", op.X(), op.Y())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.V[op.X()] &= vm.registers.V[op.Y()]
			return nil
		},
	}

	// 8ry3	xor rx,ry	exclusive or register ry into register rx
	xorInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("xor v%x, v%x", op.X(), op.Y())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.V[op.X()] ^= vm.registers.V[op.Y()]
			return nil
		},
	}

	// 8ry4	add vr,vy	add register vy to vr,carry in vf
	add2Instruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("add v%x, v%x", op.X(), op.Y())
		},
		Execute: func(vm *VM, op Operation) error {
			sum := uint16(vm.registers.V[op.X()]) + uint16(vm.registers.V[op.Y()])

			vm.registers.V[op.X()] = uint8(sum)
			vm.registers.V[flagRegister] = flag(sum > 0xFF)
			return nil
		},
	}

	// 8ry5	sub vr,vy	subtract register vy from vr,borrow in vf	vf set to 0 if borrows
	subInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("sub v%x, v%x", op.X(), op.Y())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.subtract(op.X(), op.Y(), false)
			return nil
		},
	}

	// 8ry7	rsb vr,vy	subtract register vr from register vy, result in vr	vf set to 0 if borrows
	rsbInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("rsb v%x, v%x", op.X(), op.Y())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.subtract(op.X(), op.Y(), true)
			return nil
		},
	}

	// 8ry6	shr vr,vy	shift register vr right, bit 0 goes into register vf
	shrInstruction = instruction{
		Name: func(op Operation) string {
			if op.quirks.ShiftUsesVY {
				return fmt.Sprintf("shr v%x, v%x", op.X(), op.Y())
			}
			return fmt.Sprintf("shr v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			if op.quirks.ShiftUsesVY {
				vm.registers.V[op.X()] = vm.registers.V[op.Y()]
			}
			x := vm.registers.V[op.X()]

			vm.registers.V[op.X()] = x >> 1
			vm.registers.V[flagRegister] = x & 0x1
			return nil
		},
	}

	// 8rye	shl vr,vy	shift register vr left, bit 7 goes into register vf
	shlInstruction = instruction{
		Name: func(op Operation) string {
			if op.quirks.ShiftUsesVY {
				return fmt.Sprintf("shl v%x, v%x", op.X(), op.Y())
			}
			return fmt.Sprintf("shl v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			if op.quirks.ShiftUsesVY {
				vm.registers.V[op.X()] = vm.registers.V[op.Y()]
			}
			x := vm.registers.V[op.X()]

			vm.registers.V[op.X()] = x << 1
			vm.registers.V[flagRegister] = (x >> 7) & 0x1
			return nil
		},
	}

	// axxx	mvi xxx	Load index register with constant xxx
	mviInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("mvi 0x%04x", op.NNN())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.I = op.NNN()
			return nil
		},
	}

	// bxxx	jmi xxx	Jump to address xxx+register v0
	jmiInstruction = instruction{
		Name: func(op Operation) string {
			if op.quirks.JumpUsesVX {
				return fmt.Sprintf("jmi 0x%04x, v%x", op.NNN(), op.X())
			}
			return fmt.Sprintf("jmi 0x%04x", op.NNN())
		},
		Execute: func(vm *VM, op Operation) error {
			r := uint8(0)
			if op.quirks.JumpUsesVX {
				r = op.X()
			}
			vm.pc = op.NNN() + uint16(vm.registers.V[r])
			return nil
		},
	}

	// crxx	rand vr,xx	vr = random byte masked by xx
	randInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("rand v%x, 0x%02x", op.X(), op.NN())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.V[op.X()] = vm.random.NextByte() & op.NN()
			return nil
		},
	}

	// drys	sprite rx,ry,s	Draw sprite at screen location rx,ry height s
	// Sprites stored in memory at location in index register, 8 bits wide.
	// Wraps around the screen.
	// If when drawn, clears a pixel, vf is set to 1 otherwise it is zero.
	// All drawing is xor drawing (e.g. it toggles the screen pixels)
	spriteInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("sprite v%x, v%x, %d", op.X(), op.Y(), op.N())
		},
		Execute: func(vm *VM, op Operation) error {
			x := vm.registers.V[op.X()] % ScreenWidth
			y := vm.registers.V[op.Y()] % ScreenHeight
			rows := vm.memory.ReadRange(vm.registers.I, int(op.N()))

			vm.registers.V[flagRegister] = flag(vm.display.Draw(x, y, rows))
			return nil
		},
	}

	// ek9e	skpr k	skip if key (register rk) pressed
	skprInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("skpr v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.skipIf(vm.input.IsKeyPressed(Key(vm.registers.V[op.X()])))
			return nil
		},
	}

	// eka1	skup k	skip if key (register rk) not pressed
	skupInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("skup v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.skipIf(!vm.input.IsKeyPressed(Key(vm.registers.V[op.X()])))
			return nil
		},
	}

	// fr07	gdelay vr	get delay timer into vr
	gdelayInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("gdelay v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.V[op.X()] = vm.timers.Delay()
			return nil
		},
	}

	// fr0a	key vr	wait for a fresh key, put key in register vr
	// Waiting rewinds PC so the instruction is decoded again next tick.
	keyInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("key v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			key, ok := vm.input.LastFreshInput()
			if !ok {
				vm.pc -= InstructionSize
				return nil
			}

			vm.registers.V[op.X()] = uint8(key)
			return nil
		},
	}

	// fr15	sdelay vr	set the delay timer to vr
	sdelayInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("sdelay v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.timers.SetDelay(vm.registers.V[op.X()])
			return nil
		},
	}

	// fr18	ssound vr	set the sound timer to vr
	ssoundInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("ssound v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.timers.SetSound(vm.registers.V[op.X()])
			return nil
		},
	}

	// fr1e	adi vr	add register vr to the index register
	adiInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("adi v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.I += uint16(vm.registers.V[op.X()])
			if vm.registers.I > MaxAddress {
				vm.registers.V[flagRegister] = 1
			}
			return nil
		},
	}

	// fr29	font vr	point I to the sprite for hexadecimal character in vr	Sprite is 5 bytes high
	fontInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("font v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			vm.registers.I = FontAddress(vm.registers.V[op.X()])
			return nil
		},
	}

	// fr33	bcd vr	store the bcd representation of register vr at location I,I+1,I+2	Doesn't change I
	bcdInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("bcd v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			x := vm.registers.V[op.X()]
			i := vm.registers.I

			vm.memory.Write(i, x/100)
			vm.memory.Write(i+1, (x/10)%10)
			vm.memory.Write(i+2, x%10)
			return nil
		},
	}

	// fr55	str v0-vr	store registers v0-vr at location I onwards
	strInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("str v0-v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			n := uint16(op.X())

			for i := uint16(0); i <= n; i++ {
				vm.memory.Write(vm.registers.I+i, vm.registers.V[i])
			}

			// On the original interpreter, when the operation is done, I = I + X + 1.
			if op.quirks.IncrementIndex {
				vm.registers.I += n + 1
			}
			return nil
		},
	}

	// fx65	ldr v0-vr	load registers v0-vr from location I onwards.
	ldrInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("ldr v0-v%x", op.X())
		},
		Execute: func(vm *VM, op Operation) error {
			n := uint16(op.X())

			for i := uint16(0); i <= n; i++ {
				vm.registers.V[i] = vm.memory.Read(vm.registers.I + i)
			}

			if op.quirks.IncrementIndex {
				vm.registers.I += n + 1
			}
			return nil
		},
	}

	unknownInstruction = instruction{
		Name: func(op Operation) string {
			return fmt.Sprintf("unknown 0x%04X", op.Opcode)
		},
		Execute: func(vm *VM, op Operation) error {
			return ErrUnknownOpcode
		},
		unknown: true,
	}
)

// subtract stores VX-VY (or VY-VX when negate is set) in VX. VF is 1 when
// the unwrapped difference is not negative.
func (vm *VM) subtract(x, y uint8, negate bool) {
	diff := int(vm.registers.V[x]) - int(vm.registers.V[y])
	if negate {
		diff = -diff
	}

	vm.registers.V[x] = uint8(diff)
	vm.registers.V[flagRegister] = flag(diff >= 0)
}
