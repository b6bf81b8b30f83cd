package nes

// PPU implements the 2C02 picture processing unit: the 341x262 dot/scanline
// timing grid, the v/t/x/w scroll register machinery, the background and
// sprite shift-register pipelines, and NMI generation.
type PPU struct {
	cart *Cart

	// CPU-facing registers
	ctrl    uint8 // $2000
	mask    uint8 // $2001
	status  uint8 // $2002 (write side is internal; only bits 5-7 are real)
	oamAddr uint8

	// Loopy scroll registers
	v uint16 // current VRAM address (15 bits)
	t uint16 // temporary VRAM address (15 bits)
	x uint8  // fine X scroll (3 bits)
	w bool   // write toggle

	dataBuf  uint8 // buffered PPUDATA read-ahead
	busLatch uint8 // open-bus decay value for unimplemented register bits

	oam       [256]uint8
	nametable [2 * 1024]uint8
	palette   [32]uint8

	// Background pipeline
	ntByte    uint8
	atByte    uint8
	ptLoByte  uint8
	ptHiByte  uint8
	bgShiftLo uint16
	bgShiftHi uint16
	atShiftLo uint16
	atShiftHi uint16

	// Sprite pipeline, evaluated once per scanline at dot 257 and shifted
	// out during the next scanline's visible dots.
	spriteCount      int
	spritePatternsLo [8]uint8
	spritePatternsHi [8]uint8
	spriteAttrs      [8]uint8
	spriteX          [8]uint8
	spriteIsZero     [8]bool
	spriteZeroOnLine bool

	scanline int
	dot      int
	frame    uint64
	oddFrame bool

	nmiOccurred bool
	nmiOutput   bool
	nmiEdge     bool

	Frame [256 * 240]uint32
}

func NewPPU() *PPU {
	return &PPU{}
}

func (p *PPU) SetCart(cart *Cart) {
	p.cart = cart
}

func (p *PPU) Reset() {
	p.ctrl, p.mask, p.status, p.oamAddr = 0, 0, 0, 0
	p.v, p.t, p.x = 0, 0, 0
	p.w = false
	p.dataBuf = 0
	p.scanline, p.dot, p.frame = 0, 0, 0
	p.oddFrame = false
	p.nmiOccurred, p.nmiOutput, p.nmiEdge = false, false, false
}

func (p *PPU) renderingEnabled() bool  { return p.mask&0x18 != 0 }
func (p *PPU) spritesVisible() bool    { return p.mask&0x10 != 0 }
func (p *PPU) backgroundVisible() bool { return p.mask&0x08 != 0 }
func (p *PPU) spriteSize16() bool      { return p.ctrl&0x20 != 0 }
func (p *PPU) vramIncrement() uint16 {
	if p.ctrl&0x4 != 0 {
		return 32
	}
	return 1
}
func (p *PPU) bgPatternBase() uint16 {
	if p.ctrl&0x10 != 0 {
		return 0x1000
	}
	return 0
}
func (p *PPU) spritePatternBase() uint16 {
	if p.ctrl&0x8 != 0 {
		return 0x1000
	}
	return 0
}

// readRegister handles a CPU access to one of the eight $2000-$2007
// registers (addr already folded into 0-7 by the caller).
func (p *PPU) readRegister(addr uint16) uint8 {
	switch addr {
	case 2: // PPUSTATUS
		v := p.busLatch & 0x1f
		v |= p.status & 0xe0
		if p.nmiOccurred {
			v |= 0x80
		}
		p.nmiOccurred = false
		p.w = false
		p.busLatch = v
		return v
	case 4: // OAMDATA
		v := p.oam[p.oamAddr]
		p.busLatch = v
		return v
	case 7: // PPUDATA
		addr := p.v & 0x3fff
		var v uint8
		if addr >= 0x3f00 {
			v = p.readPalette(addr)
			// Palette reads bypass the read buffer but the buffer is
			// still refilled from the underlying nametable mirror.
			p.dataBuf = p.ppuBusRead(addr - 0x1000)
		} else {
			v = p.dataBuf
			p.dataBuf = p.ppuBusRead(addr)
		}
		p.v += p.vramIncrement()
		p.busLatch = v
		return v
	}
	return p.busLatch
}

func (p *PPU) writeRegister(addr uint16, data uint8) {
	p.busLatch = data
	switch addr {
	case 0: // PPUCTRL
		prevNMI := p.nmiOutput
		p.ctrl = data
		p.t = (p.t &^ 0x0c00) | (uint16(data&0x3) << 10)
		p.nmiOutput = data&0x80 != 0
		if !prevNMI && p.nmiOutput && p.nmiOccurred {
			p.nmiEdge = true
		}
	case 1: // PPUMASK
		p.mask = data
	case 3: // OAMADDR
		p.oamAddr = data
	case 4: // OAMDATA
		p.oam[p.oamAddr] = data
		p.oamAddr++
	case 5: // PPUSCROLL
		if !p.w {
			p.t = (p.t &^ 0x001f) | uint16(data>>3)
			p.x = data & 0x7
		} else {
			p.t = (p.t &^ 0x73e0) | (uint16(data&0x7) << 12) | (uint16(data&0xf8) << 2)
		}
		p.w = !p.w
	case 6: // PPUADDR
		if !p.w {
			p.t = (p.t &^ 0x7f00) | (uint16(data&0x3f) << 8)
		} else {
			p.t = (p.t &^ 0x00ff) | uint16(data)
			p.v = p.t
		}
		p.w = !p.w
	case 7: // PPUDATA
		addr := p.v & 0x3fff
		if addr >= 0x3f00 {
			p.writePalette(addr, data)
		} else {
			p.ppuBusWrite(addr, data)
		}
		p.v += p.vramIncrement()
	}
}

func (p *PPU) paletteIndex(addr uint16) uint16 {
	idx := addr & 0x1f
	if idx%4 == 0 {
		idx &= 0x0f // $3F10/14/18/1C mirror $3F00/04/08/0C
	}
	return idx
}

func (p *PPU) readPalette(addr uint16) uint8 {
	return p.palette[p.paletteIndex(addr)] & 0x3f
}

func (p *PPU) writePalette(addr uint16, data uint8) {
	p.palette[p.paletteIndex(addr)] = data & 0x3f
}

// ppuBusRead/ppuBusWrite implement the PPU's own 14-bit address space:
// pattern tables via the mapper, nametables folded through the cart's
// mirroring mode.
func (p *PPU) ppuBusRead(addr uint16) uint8 {
	addr &= 0x3fff
	p.cart.notifyPPUAddr(addr)
	switch {
	case addr < 0x2000:
		return p.cart.ppuRead(addr)
	case addr < 0x3f00:
		return p.nametable[mirrorNametableAddr(p.cart.mirrorMode(), addr)%uint16(len(p.nametable))]
	default:
		return p.readPalette(addr)
	}
}

func (p *PPU) ppuBusWrite(addr uint16, data uint8) {
	addr &= 0x3fff
	p.cart.notifyPPUAddr(addr)
	switch {
	case addr < 0x2000:
		p.cart.ppuWrite(addr, data)
	case addr < 0x3f00:
		p.nametable[mirrorNametableAddr(p.cart.mirrorMode(), addr)%uint16(len(p.nametable))] = data
	default:
		p.writePalette(addr, data)
	}
}

// OAMDMAWrite is invoked by the bus once per byte during an OAM DMA
// transfer; it writes through OAMDATA semantics without disturbing the
// read-side latch.
func (p *PPU) OAMDMAWrite(data uint8) {
	p.oam[p.oamAddr] = data
	p.oamAddr++
}

// TakeNMIEdge reports and clears whether the NMI line has risen since the
// last call, for the bus to forward into the CPU.
func (p *PPU) TakeNMIEdge() bool {
	e := p.nmiEdge
	p.nmiEdge = false
	return e
}

func flip8(b uint8) uint8 {
	b = (b&0xf0)>>4 | (b&0x0f)<<4
	b = (b&0xcc)>>2 | (b&0x33)<<2
	b = (b&0xaa)>>1 | (b&0x55)<<1
	return b
}

// incHorizontal and incVertical implement the standard loopy v-register
// coarse/fine scroll increments.
func (p *PPU) incHorizontal() {
	if p.v&0x001f == 31 {
		p.v &^= 0x001f
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incVertical() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03e0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03e0) | (y << 5)
}

func (p *PPU) copyHorizontal() {
	p.v = (p.v &^ 0x041f) | (p.t & 0x041f)
}

func (p *PPU) copyVertical() {
	p.v = (p.v &^ 0x7be0) | (p.t & 0x7be0)
}

func (p *PPU) fetchBackground() {
	switch p.dot % 8 {
	case 1:
		p.loadBgShifters()
		ntAddr := 0x2000 | (p.v & 0x0fff)
		p.ntByte = p.ppuBusRead(ntAddr)
	case 3:
		atAddr := 0x23c0 | (p.v & 0x0c00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
		at := p.ppuBusRead(atAddr)
		shift := ((p.v >> 4) & 4) | (p.v & 2)
		p.atByte = (at >> shift) & 0x3
	case 5:
		base := p.bgPatternBase()
		tileAddr := base + uint16(p.ntByte)*16 + (p.v>>12)&0x7
		p.ptLoByte = p.ppuBusRead(tileAddr)
	case 7:
		base := p.bgPatternBase()
		tileAddr := base + uint16(p.ntByte)*16 + (p.v>>12)&0x7 + 8
		p.ptHiByte = p.ppuBusRead(tileAddr)
	case 0:
		p.incHorizontal()
	}
}

func (p *PPU) loadBgShifters() {
	p.bgShiftLo = (p.bgShiftLo &^ 0x00ff) | uint16(p.ptLoByte)
	p.bgShiftHi = (p.bgShiftHi &^ 0x00ff) | uint16(p.ptHiByte)
	var loFill, hiFill uint16
	if p.atByte&0x1 != 0 {
		loFill = 0xff
	}
	if p.atByte&0x2 != 0 {
		hiFill = 0xff
	}
	p.atShiftLo = (p.atShiftLo &^ 0x00ff) | loFill
	p.atShiftHi = (p.atShiftHi &^ 0x00ff) | hiFill
}

func (p *PPU) shiftBackground() {
	p.bgShiftLo <<= 1
	p.bgShiftHi <<= 1
	p.atShiftLo <<= 1
	p.atShiftHi <<= 1
}

// evaluateSprites runs the secondary-OAM scan for the current scanline, at
// dot 257, reproducing the classic sprite-overflow detection bug: once 8
// sprites have matched, the evaluator keeps scanning OAM but advances its
// byte index the same buggy way real hardware does, so a scanline with
// fewer than 9 in-range sprites can still occasionally set overflow.
func (p *PPU) evaluateSprites() {
	targetLine := p.scanline
	height := 8
	if p.spriteSize16() {
		height = 16
	}

	p.spriteCount = 0
	p.spriteZeroOnLine = false

	n := 0
	for n < 64 && p.spriteCount < 8 {
		y := int(p.oam[n*4])
		row := targetLine - y
		if row >= 0 && row < height {
			base := n * 4
			idx := p.spriteCount
			p.spriteAttrs[idx] = p.oam[base+2]
			p.spriteX[idx] = p.oam[base+3]
			p.spriteIsZero[idx] = n == 0
			if n == 0 {
				p.spriteZeroOnLine = true
			}
			p.loadSpritePattern(idx, row, p.oam[base+1], p.spriteAttrs[idx])
			p.spriteCount++
		}
		n++
	}

	// With 8 sprites found, keep scanning from sprite n; on a miss the
	// hardware advances both the sprite index and the byte index m (which
	// wraps within the 4-byte entry), so later "Y" reads hit other bytes.
	overflow := false
	m := 0
	for n < 64 {
		y := int(p.oam[n*4+m])
		row := targetLine - y
		if row >= 0 && row < height {
			overflow = true
			break
		}
		n++
		m = (m + 1) & 3
	}

	if overflow {
		p.status |= 0x20
	}
}

func (p *PPU) loadSpritePattern(idx int, row int, tile, attr uint8) {
	flipV := attr&0x80 != 0
	flipH := attr&0x40 != 0
	height := 8
	if p.spriteSize16() {
		height = 16
	}
	if flipV {
		row = height - 1 - row
	}

	var base uint16
	rowInTile := row
	if p.spriteSize16() {
		table := uint16(tile&0x1) * 0x1000
		tileIdx := tile &^ 1
		if row >= 8 {
			tileIdx++
			rowInTile = row - 8
		}
		base = table + uint16(tileIdx)*16
	} else {
		base = p.spritePatternBase() + uint16(tile)*16
	}

	lo := p.ppuBusRead(base + uint16(rowInTile))
	hi := p.ppuBusRead(base + uint16(rowInTile) + 8)
	if flipH {
		lo = flip8(lo)
		hi = flip8(hi)
	}
	p.spritePatternsLo[idx] = lo
	p.spritePatternsHi[idx] = hi
}

// renderPixel composes the background and sprite pipelines for the pixel
// about to be output at (dot-1, scanline), applying priority and sprite-0
// hit detection.
func (p *PPU) renderPixel() {
	x := p.dot - 1
	if x < 0 || x >= 256 {
		return
	}

	bgPixel := uint8(0)
	bgPalette := uint8(0)
	if p.backgroundVisible() && !(x < 8 && p.mask&0x02 == 0) {
		shift := uint16(15 - p.x)
		lo := uint8((p.bgShiftLo >> shift) & 1)
		hi := uint8((p.bgShiftHi >> shift) & 1)
		bgPixel = hi<<1 | lo
		alo := uint8((p.atShiftLo >> shift) & 1)
		ahi := uint8((p.atShiftHi >> shift) & 1)
		bgPalette = ahi<<1 | alo
	}

	spPixel := uint8(0)
	spPalette := uint8(0)
	spPriority := uint8(1)
	spIsZero := false
	if p.spritesVisible() && !(x < 8 && p.mask&0x04 == 0) {
		for i := 0; i < p.spriteCount; i++ {
			off := x - int(p.spriteX[i])
			if off < 0 || off > 7 {
				continue
			}
			lo := (p.spritePatternsLo[i] >> (7 - off)) & 1
			hi := (p.spritePatternsHi[i] >> (7 - off)) & 1
			px := hi<<1 | lo
			if px == 0 {
				continue
			}
			spPixel = px
			spPalette = p.spriteAttrs[i] & 0x3
			spPriority = (p.spriteAttrs[i] >> 5) & 1
			spIsZero = p.spriteIsZero[i]
			break
		}
	}

	if bgPixel != 0 && spPixel != 0 && spIsZero && p.spriteZeroOnLine && x != 255 {
		p.status |= 0x40
	}

	var colorAddr uint16
	switch {
	case bgPixel == 0 && spPixel == 0:
		colorAddr = 0x3f00
	case bgPixel == 0:
		colorAddr = 0x3f10 + uint16(spPalette)*4 + uint16(spPixel)
	case spPixel == 0:
		colorAddr = 0x3f00 + uint16(bgPalette)*4 + uint16(bgPixel)
	case spPriority == 0:
		colorAddr = 0x3f10 + uint16(spPalette)*4 + uint16(spPixel)
	default:
		colorAddr = 0x3f00 + uint16(bgPalette)*4 + uint16(bgPixel)
	}

	idx := p.readPalette(colorAddr)
	emphasis := (p.mask >> 5) & 0x7
	p.Frame[p.scanline*256+x] = applyEmphasis(nesPalette[idx&0x3f], emphasis)
}

// Tic advances the PPU by one dot, following the standard 341x262 timing
// grid (with the odd-frame skip of the idle cycle on the pre-render line).
func (p *PPU) Tic() {
	visible := p.scanline >= 0 && p.scanline <= 239
	preRender := p.scanline == 261

	if (visible || preRender) && p.renderingEnabled() {
		switch {
		case p.dot >= 1 && p.dot <= 256:
			p.shiftBackground()
			if visible {
				p.renderPixel()
			}
			p.fetchBackground()
			if p.dot == 256 {
				p.incVertical()
			}
		case p.dot == 257:
			p.copyHorizontal()
			if visible {
				p.evaluateSprites()
			}
		case p.dot >= 321 && p.dot <= 336:
			p.shiftBackground()
			p.fetchBackground()
		}

		if preRender && p.dot >= 280 && p.dot <= 304 {
			p.copyVertical()
		}
	}

	if p.scanline == 241 && p.dot == 1 {
		p.nmiOccurred = true
		if p.nmiOutput {
			p.nmiEdge = true
		}
	}
	if preRender && p.dot == 1 {
		p.nmiOccurred = false
		p.status &^= 0x40 | 0x20
	}

	p.dot++
	if p.dot > 340 || (preRender && p.dot > 339 && p.oddFrame && p.renderingEnabled()) {
		p.dot = 0
		p.scanline++
		if p.scanline > 261 {
			p.scanline = 0
			p.frame++
			p.oddFrame = !p.oddFrame
		}
	}
}
