package nes

// Mapper is the cartridge-resident address translation and bank-switching
// contract shared by every supported board. It exposes the two logical
// buses the PPU and CPU see, plus the mirroring mode and IRQ line a board
// may drive.
//
// The supported boards form a closed set selected at load time by the
// iNES mapper number; there is no dynamic registration of new boards at
// runtime, so a plain Go interface over a handful of concrete types plays
// the role of the "closed tagged variant" called for in the design notes.
type Mapper interface {
	CPURead(addr uint16) uint8
	CPUWrite(addr uint16, data uint8)
	PPURead(addr uint16) uint8
	PPUWrite(addr uint16, data uint8)

	// Mirror reports the current nametable mirroring mode. Some boards
	// (MMC1, MMC3) change this at runtime via bank-select writes.
	Mirror() Mirror

	// NotifyPPUAddr is called on every PPU VRAM bus access with the
	// 14-bit address the PPU just drove, so boards that watch the A12
	// line (MMC3) can clock their scanline counter off it. Boards that
	// don't care leave it a no-op.
	NotifyPPUAddr(addr uint16)

	// IRQ reports whether the mapper currently asserts the CPU's IRQ
	// line (MMC3 scanline counter only; every other board always false).
	IRQ() bool

	// Tick is called once per CPU cycle. Only MMC1 uses it, to drop the
	// second write of a read-modify-write instruction, which lands on the
	// same counted CPU cycle as the first.
	Tick()
}

// newMapper constructs the Mapper for cart's mapper ID, or returns
// ErrUnsupportedMapper.
func newMapper(cart *Cart) (Mapper, error) {
	switch cart.mapperID {
	case 0:
		return newMapperNROM(cart), nil
	case 1:
		return newMapperMMC1(cart), nil
	case 2:
		return newMapperUxROM(cart), nil
	case 3:
		return newMapperCNROM(cart), nil
	case 4:
		return newMapperMMC3(cart), nil
	default:
		return nil, newLoadErr(ErrUnsupportedMapper, "mapper %d is not in the supported set", cart.mapperID)
	}
}
