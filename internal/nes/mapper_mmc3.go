package nes

// mapperMMC3 is iNES mapper 4. Eight bank registers (R0-R7) are loaded via
// a bank-select/bank-data port pair at 0x8000/0x8001 (even/odd addresses
// within that range alias the pair across the whole 0x8000-0x9FFF window).
// PRG is split into two swappable 8 KiB windows and two fixed to the last
// two 8 KiB banks, with a mode bit swapping which pair is fixed. CHR is
// split into two 2 KiB and four 1 KiB windows, with a mode bit swapping
// which group is which size.
//
// The scanline IRQ counter is clocked by the PPU address bus's A12 line
// rather than by CPU cycles: NotifyPPUAddr watches for A12's rising edge
// and, after filtering out edges less than a handful of PPU cycles apart
// (the real chip requires A12 to have been low for several cycles first),
// decrements an 8-bit counter that reloads and fires IRQ on reaching zero.
type mapperMMC3 struct {
	cart *Cart

	bankSelect uint8
	regs       [8]uint8

	mirror uint8 // 0 = vertical, 1 = horizontal

	prgRAMEnabled bool
	prgRAMProtect bool

	irqLatch   uint8
	irqCounter uint8
	irqEnabled bool
	irqReload  bool
	irqPending bool

	lastA12   uint16
	a12LowRun int

	prgBanks uint8
	chrBanks uint8
}

func newMapperMMC3(cart *Cart) *mapperMMC3 {
	return &mapperMMC3{
		cart:     cart,
		prgBanks: uint8(len(cart.pgrMem) / 0x2000),
		chrBanks: uint8(len(cart.chrMem) / 0x0400),
	}
}

func (m *mapperMMC3) Tick() {}

func (m *mapperMMC3) Mirror() Mirror {
	if m.mirror == 1 {
		return MirrorHorizontal
	}
	return MirrorVertical
}

func (m *mapperMMC3) prgModeSwapped() bool { return m.bankSelect&0x40 != 0 }
func (m *mapperMMC3) chrModeSwapped() bool { return m.bankSelect&0x80 != 0 }

func (m *mapperMMC3) prgBankAt8K(slot int) uint8 {
	last := m.prgBanks - 1
	// Logical 8 KiB windows 0-3 at 0x8000,0xA000,0xC000,0xE000.
	fixedSecondToLast := last - 1
	swapped := m.prgModeSwapped()
	switch slot {
	case 0:
		if swapped {
			return fixedSecondToLast
		}
		return m.regs[6] % m.prgBanks
	case 1:
		return m.regs[7] % m.prgBanks
	case 2:
		if swapped {
			return m.regs[6] % m.prgBanks
		}
		return fixedSecondToLast
	default:
		return last
	}
}

func (m *mapperMMC3) CPURead(addr uint16) uint8 {
	if addr >= 0x6000 && addr < 0x8000 {
		if m.prgRAMEnabled {
			return m.cart.prgRAM[addr-0x6000]
		}
		return 0
	}
	if addr < 0x8000 {
		return 0
	}
	slot := int((addr - 0x8000) / 0x2000)
	bank := m.prgBankAt8K(slot)
	offset := uint16(bank)*0x2000 + addr%0x2000
	return m.cart.pgrMem[offset]
}

func (m *mapperMMC3) CPUWrite(addr uint16, data uint8) {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		if m.prgRAMEnabled && !m.prgRAMProtect {
			m.cart.prgRAM[addr-0x6000] = data
		}
	case addr >= 0x8000 && addr < 0xa000:
		if addr%2 == 0 {
			m.bankSelect = data
		} else {
			reg := m.bankSelect & 0x7
			m.regs[reg] = data
		}
	case addr >= 0xa000 && addr < 0xc000:
		if addr%2 == 0 {
			m.mirror = data & 0x1
		} else {
			m.prgRAMProtect = data&0x40 != 0
			m.prgRAMEnabled = data&0x80 != 0
		}
	case addr >= 0xc000 && addr < 0xe000:
		if addr%2 == 0 {
			m.irqLatch = data
		} else {
			m.irqReload = true
		}
	case addr >= 0xe000:
		if addr%2 == 0 {
			m.irqEnabled = false
			m.irqPending = false
		} else {
			m.irqEnabled = true
		}
	}
}

// chrBankAt1K returns the 1 KiB bank index backing one of the eight 1 KiB
// windows in the PPU's 0x0000-0x1FFF pattern-table space.
func (m *mapperMMC3) chrBankAt1K(window int) uint8 {
	swapped := m.chrModeSwapped()
	if swapped {
		window = (window + 4) % 8
	}
	var bank uint8
	switch window {
	case 0:
		bank = m.regs[0] &^ 1
	case 1:
		bank = m.regs[0] | 1
	case 2:
		bank = m.regs[1] &^ 1
	case 3:
		bank = m.regs[1] | 1
	case 4:
		bank = m.regs[2]
	case 5:
		bank = m.regs[3]
	case 6:
		bank = m.regs[4]
	default:
		bank = m.regs[5]
	}
	if m.chrBanks == 0 {
		return 0
	}
	return bank % m.chrBanks
}

func (m *mapperMMC3) PPURead(addr uint16) uint8 {
	m.NotifyPPUAddr(addr)
	window := int(addr / 0x400)
	bank := m.chrBankAt1K(window)
	offset := uint16(bank)*0x400 + addr%0x400
	return m.cart.chrMem[offset]
}

func (m *mapperMMC3) PPUWrite(addr uint16, data uint8) {
	m.NotifyPPUAddr(addr)
	if !m.cart.chrIsRAM {
		return
	}
	window := int(addr / 0x400)
	bank := m.chrBankAt1K(window)
	offset := uint16(bank)*0x400 + addr%0x400
	m.cart.chrMem[offset] = data
}

// NotifyPPUAddr watches the PPU's VRAM address bus for A12 (bit 12) rising
// edges, filtering out edges that follow fewer than a handful of
// consecutive low cycles, and clocks the scanline counter on each
// qualifying edge.
func (m *mapperMMC3) NotifyPPUAddr(addr uint16) {
	a12 := addr & 0x1000
	if a12 == 0 {
		m.a12LowRun++
		m.lastA12 = a12
		return
	}
	if m.lastA12 == 0 && m.a12LowRun >= 3 {
		m.clockScanlineCounter()
	}
	m.lastA12 = a12
	m.a12LowRun = 0
}

func (m *mapperMMC3) clockScanlineCounter() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnabled {
		m.irqPending = true
	}
}

func (m *mapperMMC3) IRQ() bool { return m.irqPending }
