package vm

import (
	"errors"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestMemoryAddressModes(t *testing.T) {
	m := NewMemory(AddressWrap)
	m.Write(0x1005, 0x42)
	assert.Equal(t, uint8(0x42), m.Read(0x005))
	assert.Equal(t, []uint8{0x00, 0x42}, m.ReadRange(0x0FFF+5, 2)[0:2])

	m = NewMemory(AddressStrict)
	m.Write(0x0FFF, 0x11)
	m.Write(0x1005, 0x42)
	assert.Equal(t, uint8(0), m.Read(0x005))
	assert.Equal(t, uint8(0), m.Read(0x1005))
	assert.Equal(t, []uint8{0x11, 0x00}, m.ReadRange(0x0FFF, 2))
}

func TestParseAddressMode(t *testing.T) {
	for _, mode := range []AddressMode{AddressWrap, AddressStrict} {
		got, err := ParseAddressMode(mode.String())
		assert.NoError(t, err)
		assert.Equal(t, mode, got)
	}

	_, err := ParseAddressMode("clamp")
	assert.True(t, err != nil)
}

func TestFontPlacement(t *testing.T) {
	m := NewMemory(AddressWrap)
	m.PopulateFonts()

	assert.Equal(t, uint16(0x050), FontAddress(0))
	assert.Equal(t, uint16(0x050+10*5), FontAddress(0xA))
	assert.Equal(t, []uint8{0xF0, 0x90, 0xF0, 0x90, 0x90}, m.ReadRange(FontAddress(0xA), 5))
	assert.Equal(t, uint8(0x80), m.Read(0x09F))
	assert.Equal(t, uint8(0), m.Read(0x0A0))
}

func TestMemoryReset(t *testing.T) {
	m := NewMemory(AddressWrap)
	m.Load(ProgramStart, []byte{1, 2, 3})
	m.Reset()
	assert.Equal(t, []uint8{0, 0, 0}, m.ReadRange(ProgramStart, 3))
}

func TestStack(t *testing.T) {
	s := NewStack(2)

	assert.NoError(t, s.Push(0x300))
	top, ok := s.Top()
	assert.True(t, ok)
	assert.Equal(t, uint16(0x300), top)

	assert.NoError(t, s.Push(0x400))
	assert.True(t, errors.Is(s.Push(0x500), ErrStackOverflow))
	assert.Equal(t, []uint16{0x300, 0x400}, s.Frames())

	addr, err := s.Pop()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x400), addr)

	s.Clear()
	_, ok = s.Top()
	assert.False(t, ok)
	_, err = s.Pop()
	assert.True(t, errors.Is(err, ErrStackUnderflow))
}

func TestStackUnbounded(t *testing.T) {
	s := NewStack(0)
	for i := 0; i < 100; i++ {
		assert.NoError(t, s.Push(uint16(i)))
	}
	assert.Equal(t, 100, s.Len())
}

func TestTimersSaturate(t *testing.T) {
	var tm Timers
	tm.Decrement()
	assert.Equal(t, uint8(0), tm.Delay())
	assert.Equal(t, uint8(0), tm.Sound())

	tm.SetDelay(2)
	tm.SetSound(1)
	assert.True(t, tm.SoundActive())
	tm.Decrement()
	assert.Equal(t, uint8(1), tm.Delay())
	assert.False(t, tm.SoundActive())
	tm.Decrement()
	tm.Decrement()
	assert.Equal(t, uint8(0), tm.Delay())
}

func TestKeypadFreshInput(t *testing.T) {
	var k Keypad

	_, ok := k.LastFreshInput()
	assert.False(t, ok)

	k.KeyDown(KeyC)
	assert.True(t, k.IsKeyPressed(KeyC))
	_, ok = k.LastFreshInput()
	assert.False(t, ok)

	k.KeyUp(KeyC)
	assert.False(t, k.IsKeyPressed(KeyC))
	key, ok := k.LastFreshInput()
	assert.True(t, ok)
	assert.Equal(t, KeyC, key)

	k.ConsumeFreshInput()
	_, ok = k.LastFreshInput()
	assert.False(t, ok)

	k.KeyDown(Key(0x20))
	assert.False(t, k.IsKeyPressed(Key(0x20)))
}

func TestFramebufferVerticalWrap(t *testing.T) {
	var fb Framebuffer
	collided := fb.Draw(0, 31, []uint8{0x80, 0x80})
	assert.False(t, collided)
	assert.True(t, fb.Pixel(0, 31))
	assert.True(t, fb.Pixel(0, 0))
	assert.True(t, fb.Dirty())

	fb.MarkPresented()
	assert.False(t, fb.Dirty())

	collided = fb.Draw(0, 0, []uint8{0xC0})
	assert.True(t, collided)
	assert.False(t, fb.Pixel(0, 0))
	assert.True(t, fb.Pixel(1, 0))
}

func TestFramebufferString(t *testing.T) {
	var fb Framebuffer
	fb.Draw(62, 0, []uint8{0xA0})

	lines := strings.Split(fb.String(), "\n")
	assert.Equal(t, ScreenHeight+1, len(lines))
	assert.Equal(t, "#"+strings.Repeat(".", 61)+"#.", lines[0])
	assert.Equal(t, strings.Repeat(".", ScreenWidth), lines[1])
}

func TestQuirksPreset(t *testing.T) {
	q, err := QuirksPreset("SCHIP")
	assert.NoError(t, err)
	assert.Equal(t, Quirks{JumpUsesVX: true}, q)
	assert.Equal(t, Quirks{IncrementIndex: true}, DefaultQuirks())

	_, err = QuirksPreset("xo-chip")
	assert.True(t, err != nil)
	assert.Equal(t, []string{"cosmac", "default", "schip"}, QuirksPresetNames())
}

func TestDisassemble(t *testing.T) {
	tests := []struct {
		opcode uint16
		want   string
	}{
		{0x00E0, "cls"},
		{0x00EE, "rts"},
		{0x1234, "jmp 0x0234"},
		{0xD125, "sprite v1, v2, 5"},
		{0xF40A, "key v4"},
		{0xF355, "str v0-v3"},
		{0x0123, "unknown 0x0123"},
		{0x812F, "unknown 0x812F"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Disassemble(tt.opcode))
	}
}
