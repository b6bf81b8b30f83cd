package nes

// mapperUxROM is iNES mapper 2. A single register at 0x8000-0xFFFF selects
// the 16 KiB PRG bank visible at 0x8000-0xBFFF; the last bank is always
// fixed at 0xC000-0xFFFF. CHR is a fixed 8 KiB, usually RAM.
type mapperUxROM struct {
	cart   *Cart
	bank   uint8
	banks  uint8
}

func newMapperUxROM(cart *Cart) *mapperUxROM {
	return &mapperUxROM{
		cart:  cart,
		banks: uint8(len(cart.pgrMem) / prgBankSizeBytes),
	}
}

func (m *mapperUxROM) CPURead(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		return m.cart.prgRAM[addr-0x6000]
	case addr >= 0x8000 && addr < 0xc000:
		offset := uint16(m.bank%m.banks) * prgBankSizeBytes
		return m.cart.pgrMem[offset+(addr-0x8000)]
	case addr >= 0xc000:
		offset := uint16(m.banks-1) * prgBankSizeBytes
		return m.cart.pgrMem[offset+(addr-0xc000)]
	}
	return 0
}

func (m *mapperUxROM) CPUWrite(addr uint16, data uint8) {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		m.cart.prgRAM[addr-0x6000] = data
	case addr >= 0x8000:
		m.bank = data
	}
}

func (m *mapperUxROM) PPURead(addr uint16) uint8 {
	return m.cart.chrMem[addr%uint16(len(m.cart.chrMem))]
}

func (m *mapperUxROM) PPUWrite(addr uint16, data uint8) {
	if m.cart.chrIsRAM {
		m.cart.chrMem[addr%uint16(len(m.cart.chrMem))] = data
	}
}

func (m *mapperUxROM) Mirror() Mirror          { return m.cart.mirror }
func (m *mapperUxROM) NotifyPPUAddr(_ uint16) {}
func (m *mapperUxROM) IRQ() bool               { return false }
func (m *mapperUxROM) Tick()                   {}
