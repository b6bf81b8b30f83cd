package nes

// Bus is the NES console: it owns the CPU, PPU, APU, internal RAM, the
// loaded cartridge, and the two controller ports, and drives the
// cooperative 1 CPU cycle : 3 PPU dots : 1 APU cycle clock that ties them
// together.
type Bus struct {
	cpu  *CPU
	ppu  *PPU
	apu  *APU
	ram  *RAM
	cart *Cart

	controller1 Controller
	controller2 Controller

	openBus uint8

	dmaPage    uint8
	dmaPending bool

	ticCounter uint64

	paused   bool
	stepOnce bool
}

func NewBus() *Bus {
	b := &Bus{}
	b.ram = NewRAM()
	mem := b.newCpuMemory()
	b.cpu = NewCPU(mem)
	b.ppu = NewPPU()
	b.apu = NewAPU(mem, b.cpu)
	return b
}

// LoadCart installs a cartridge and resets the console to its power-on
// state with that cartridge attached.
func (b *Bus) LoadCart(cart *Cart) {
	b.cart = cart
	b.ppu.SetCart(cart)
	b.Reset()
}

func (b *Bus) Reset() {
	b.cpu.Reset()
	b.ppu.Reset()
	b.apu.Reset()
	b.ticCounter = 0
}

// SetButtons1/SetButtons2 latch the current button state for each
// controller port ahead of the next strobe read.
func (b *Bus) SetButtons1(buttons uint8) { b.controller1.SetButtons(buttons) }
func (b *Bus) SetButtons2(buttons uint8) { b.controller2.SetButtons(buttons) }

// Frame returns the most recently completed frame's pixel buffer, packed
// 0xRRGGBB per pixel, row-major 256x240.
func (b *Bus) Frame() *[256 * 240]uint32 { return &b.ppu.Frame }

// Samples is the APU's audio output stream, one mixed sample per CPU
// cycle, not resampled.
func (b *Bus) Samples() <-chan float32 { return b.apu.Samples }

// Tic steps the console by one CPU cycle: one CPU step, three PPU dots,
// and one APU step, the classic NES clock ratio.
func (b *Bus) Tic() {
	if b.paused && !b.stepOnce {
		return
	}
	b.stepOnce = false

	if b.dmaPending {
		b.runOAMDMA()
		b.dmaPending = false
	}

	b.cpu.Tic()
	if b.cart != nil {
		b.cart.tick()
	}

	for i := 0; i < 3; i++ {
		b.ppu.Tic()
		if b.ppu.TakeNMIEdge() {
			b.cpu.RequestNMI()
		}
	}

	b.apu.Step()
	b.cpu.SetIRQLine(b.apu.IRQ() || (b.cart != nil && b.cart.irq()))

	b.ticCounter++
}

// RunFrame runs the console until the PPU completes one full frame, or
// until a single-step request has been serviced.
func (b *Bus) RunFrame() {
	if b.paused && !b.stepOnce {
		return
	}
	if b.stepOnce {
		b.Tic()
		return
	}
	startFrame := b.ppu.frame
	for b.ppu.frame == startFrame {
		b.Tic()
	}
}

// runOAMDMA performs the bulk 256-byte transfer from CPU page dmaPage into
// PPU OAM and stalls the CPU for 513 cycles (514 if the transfer starts on
// an odd CPU cycle, per the documented OAM DMA timing).
func (b *Bus) runOAMDMA() {
	base := uint16(b.dmaPage) << 8
	for i := 0; i < 256; i++ {
		b.ppu.OAMDMAWrite(b.cpu.read8(base + uint16(i)))
	}
	stall := uint32(513)
	if b.ticCounter%2 != 0 {
		stall = 514
	}
	b.cpu.Stall(stall)
}
