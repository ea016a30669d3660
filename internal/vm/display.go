package vm

import "strings"

// DisplaySink is the monochrome canvas the CPU draws on.
type DisplaySink interface {
	Clear()
	// Draw XORs the sprite rows onto the canvas with the top-left corner at
	// (x, y) and reports whether any lit pixel was erased.
	Draw(x, y uint8, rows []uint8) bool
}

// Framebuffer is a 64x32 one bit per pixel canvas stored one byte per pixel.
type Framebuffer struct {
	gfx   [ScreenWidth * ScreenHeight]uint8
	dirty bool // Indicates a draw has occurred
}

func (fb *Framebuffer) Clear() {
	for i := range fb.gfx {
		fb.gfx[i] = 0
	}
	fb.dirty = true
}

// Draw wraps both the start position and every pixel of the sprite around
// the screen edges.
func (fb *Framebuffer) Draw(x, y uint8, rows []uint8) bool {
	const width = 8

	collision := false
	for row, bits := range rows {
		for bit := 0; bit < width; bit++ {
			spriteBit := (bits >> (7 - bit)) & 1
			if spriteBit == 0 {
				continue
			}

			addr := screenAddr(int(x)+bit, int(y)+row)
			if fb.gfx[addr] != 0 {
				collision = true
			}
			fb.gfx[addr] ^= 1
		}
	}

	fb.dirty = true
	return collision
}

// Pixel reports whether the pixel at (x, y) is lit. Coordinates wrap.
func (fb *Framebuffer) Pixel(x, y int) bool {
	return fb.gfx[screenAddr(x, y)] != 0
}

// Pixels returns the canvas row by row. The slice aliases the framebuffer.
func (fb *Framebuffer) Pixels() []uint8 {
	return fb.gfx[:]
}

func (fb *Framebuffer) Dirty() bool {
	return fb.dirty
}

func (fb *Framebuffer) MarkPresented() {
	fb.dirty = false
}

// String renders the canvas as text, '#' for lit pixels.
func (fb *Framebuffer) String() string {
	return RenderText(fb.gfx[:])
}

// RenderText renders a ScreenWidth*ScreenHeight pixel slice as lines of text.
func RenderText(gfx []uint8) string {
	var sb strings.Builder
	sb.Grow((ScreenWidth + 1) * ScreenHeight)
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			if gfx[x+y*ScreenWidth] != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func screenAddr(x, y int) int {
	x %= ScreenWidth
	if x < 0 {
		x += ScreenWidth
	}
	y %= ScreenHeight
	if y < 0 {
		y += ScreenHeight
	}

	return ScreenWidth*y + x
}
