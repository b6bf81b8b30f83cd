package nes

import (
	"image"
	"image/color"
)

// DebugInfo is a snapshot of CPU register state for the debug overlay.
type DebugInfo struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	P       uint8
}

func (d DebugInfo) StatusString() string {
	flags := "CZIDB-VN"
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		bit := uint8(1) << i
		c := byte('-')
		if d.P&bit != 0 {
			c = flags[i]
		}
		out[7-i] = c
	}
	return string(out)
}

func (b *Bus) DebugInfo() DebugInfo {
	return DebugInfo{
		PC: b.cpu.pc,
		A:  b.cpu.a,
		X:  b.cpu.x,
		Y:  b.cpu.y,
		SP: b.cpu.sp,
		P:  b.cpu.p,
	}
}

// Disassemble exposes the CPU's static disassembly of the whole address
// space, for the debug overlay's instruction window.
func (b *Bus) Disassemble() map[uint16]string {
	return b.cpu.Disassemble()
}

// paused and step gate the console's Tic for the debug UI's pause/step
// controls; they are not part of the core emulation semantics.
func (b *Bus) TooglePause() { b.paused = !b.paused }

func (b *Bus) OneStepAndStop() {
	b.paused = false
	b.stepOnce = true
}

// GetColorFromPalette returns the RGBA color for palette slot (0-7),
// color index (0-3), reading straight from PPU palette RAM.
func (b *Bus) GetColorFromPalette(palette, index uint8) color.RGBA {
	addr := uint16(0x3f00) + uint16(palette)*4 + uint16(index)
	idx := b.ppu.readPalette(addr)
	rgb := nesPalette[idx&0x3f]
	return color.RGBA{
		R: uint8(rgb >> 16),
		G: uint8(rgb >> 8),
		B: uint8(rgb),
		A: 0xff,
	}
}

// GetPatternTable renders one of the cartridge's two 128x128 pattern
// tables using the given palette slot (0-7), for the debug overlay.
func (b *Bus) GetPatternTable(palette uint8, table uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	if b.cart == nil {
		return img
	}
	base := uint16(table) * 0x1000
	for tileY := 0; tileY < 16; tileY++ {
		for tileX := 0; tileX < 16; tileX++ {
			tileAddr := base + uint16(tileY*16+tileX)*16
			for row := 0; row < 8; row++ {
				lo := b.cart.ppuRead(tileAddr + uint16(row))
				hi := b.cart.ppuRead(tileAddr + uint16(row) + 8)
				for col := 0; col < 8; col++ {
					bit := 7 - col
					px := ((hi>>bit)&1)<<1 | (lo>>bit)&1
					c := b.GetColorFromPalette(palette, px)
					img.Set(tileX*8+col, tileY*8+row, c)
				}
			}
		}
	}
	return img
}

// Screen returns the current frame buffer as an image.Image for the UI to
// blit, converting the 0xRRGGBB packed buffer on the fly.
func (b *Bus) Screen() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 256, 240))
	frame := b.Frame()
	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			rgb := frame[y*256+x]
			img.Set(x, y, color.RGBA{
				R: uint8(rgb >> 16),
				G: uint8(rgb >> 8),
				B: uint8(rgb),
				A: 0xff,
			})
		}
	}
	return img
}
