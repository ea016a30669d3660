package vm

import "fmt"

// AddressMode selects how addresses outside 0x000-0xFFF are resolved.
type AddressMode uint8

const (
	// AddressWrap masks every address to 12 bits.
	AddressWrap AddressMode = iota
	// AddressStrict reads out-of-range addresses as zero and drops
	// out-of-range writes.
	AddressStrict
)

func (m AddressMode) String() string {
	switch m {
	case AddressWrap:
		return "wrap"
	case AddressStrict:
		return "strict"
	default:
		return fmt.Sprintf("AddressMode(%d)", uint8(m))
	}
}

// ParseAddressMode resolves the name produced by AddressMode.String.
func ParseAddressMode(s string) (AddressMode, error) {
	switch s {
	case "wrap":
		return AddressWrap, nil
	case "strict":
		return AddressStrict, nil
	default:
		return 0, fmt.Errorf("unknown address mode %q", s)
	}
}

// MemoryIO is the byte store the CPU fetches from and operates on.
type MemoryIO interface {
	Read(addr uint16) uint8
	Write(addr uint16, v uint8)
	ReadRange(addr uint16, n int) []uint8
}

// Memory is the flat 4K address space.
type Memory struct {
	cells [MemorySize]uint8
	mode  AddressMode
}

func NewMemory(mode AddressMode) *Memory {
	return &Memory{mode: mode}
}

func (m *Memory) Mode() AddressMode {
	return m.mode
}

func (m *Memory) resolve(addr uint16) (uint16, bool) {
	if m.mode == AddressWrap {
		return addr & MaxAddress, true
	}
	return addr, addr <= MaxAddress
}

func (m *Memory) Read(addr uint16) uint8 {
	a, ok := m.resolve(addr)
	if !ok {
		return 0
	}
	return m.cells[a]
}

func (m *Memory) Write(addr uint16, v uint8) {
	a, ok := m.resolve(addr)
	if !ok {
		return
	}
	m.cells[a] = v
}

// ReadRange returns a copy of n bytes starting at addr. Each address is
// resolved separately, so a range crossing 0xFFF wraps (or reads zeroes in
// strict mode).
func (m *Memory) ReadRange(addr uint16, n int) []uint8 {
	bs := make([]uint8, n)
	for i := range bs {
		bs[i] = m.Read(addr + uint16(i))
	}
	return bs
}

// Load copies data into memory starting at addr.
func (m *Memory) Load(addr uint16, data []byte) {
	for i, b := range data {
		m.Write(addr+uint16(i), b)
	}
}

// Reset zeroes every cell.
func (m *Memory) Reset() {
	for i := range m.cells {
		m.cells[i] = 0
	}
}

// PopulateFonts writes the built-in hex glyphs at FontStart.
func (m *Memory) PopulateFonts() {
	m.Load(FontStart, chip8Font)
}

// FontAddress returns the address of the first byte of the glyph for the
// hex digit in the low nibble of digit.
func FontAddress(digit uint8) uint16 {
	return FontStart + uint16(digit&0x0F)*FontGlyphSize
}

var chip8Font = []uint8{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}
