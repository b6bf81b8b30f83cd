package nes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDurationCounterLoad_TableLookup(t *testing.T) {
	assert.Equal(t, uint8(10), durationCounterLoad(0x00))
	assert.Equal(t, uint8(254), durationCounterLoad(0x01))
	assert.Equal(t, uint8(12), durationCounterLoad(0x10))
	assert.Equal(t, uint8(30), durationCounterLoad(0x1f))
}

func TestDurationCounter_HaltPreventsDecay(t *testing.T) {
	d := durationCounter{counter: 5, halt: true}
	d.tick()
	assert.Equal(t, uint8(5), d.counter)

	d.halt = false
	d.tick()
	assert.Equal(t, uint8(4), d.counter)
}

func TestEnvelope_StartReloadsDecayToMax(t *testing.T) {
	e := envelope{start: true, reload: 3}
	e.tick()
	assert.Equal(t, uint8(15), e.decay)
	assert.Equal(t, uint8(3), e.divider)
	assert.False(t, e.start)
}

func TestEnvelope_DecaysOnDividerUnderflowAndLoops(t *testing.T) {
	e := envelope{reload: 0, loop: true, decay: 0}
	e.tick() // divider already 0 -> reload, decay at 0 loops back to 15
	assert.Equal(t, uint8(15), e.decay)
}

func TestEnvelope_ConstantVolumeIgnoresDecay(t *testing.T) {
	e := envelope{const_: true, reload: 7, decay: 2}
	assert.Equal(t, uint8(7), e.volume())
}

func TestSweep_TargetPeriod_Pulse1UsesOnesComplement(t *testing.T) {
	s := sweep{negate: true, shift: 1, pulse2Style: false}
	assert.Equal(t, uint16(100-50-1), s.targetPeriod(100))
}

func TestSweep_TargetPeriod_Pulse2UsesTwosComplement(t *testing.T) {
	s := sweep{negate: true, shift: 1, pulse2Style: true}
	assert.Equal(t, uint16(100-50), s.targetPeriod(100))
}

func TestSweep_MutesOnSmallPeriodOrOverflow(t *testing.T) {
	s := sweep{shift: 0}
	assert.True(t, s.mute(4), "period below 8 always mutes")
	s.shift = 0
	s2 := sweep{shift: 0}
	assert.True(t, s2.mute(0x7ff+1), "target above 0x7ff mutes")
}

func TestLinearCounter_ReloadThenDecay(t *testing.T) {
	l := linearCounter{reload: 9, reloadFlag: true, control: false}
	l.tick()
	assert.Equal(t, uint8(9), l.counter)
	assert.False(t, l.reloadFlag, "reload flag clears when control flag is unset")

	l.tick()
	assert.Equal(t, uint8(8), l.counter)
}

func TestNoiseChannel_TickAdvancesLFSR(t *testing.T) {
	n := newNoiseChannel()
	n.period = 0
	before := n.shift
	n.tickTimer()
	assert.NotEqual(t, before, n.shift)
}

func TestPulseChannel_MutedWhenDisabledOrLengthZero(t *testing.T) {
	p := pulseChannel{enabled: true, duty: 2, seq: 2, period: 8} // dutyTable[2][2] == 1
	p.length.counter = 1
	p.env.const_ = true
	p.env.reload = 10
	assert.Equal(t, uint8(10), p.output())

	p.enabled = false
	assert.Equal(t, uint8(0), p.output(), "a disabled channel is silent")
	p.enabled = true

	p.length.counter = 0
	assert.Equal(t, uint8(0), p.output(), "zero length counter mutes the channel")
}

func TestAPU_FrameSequencer4StepAssertsIRQAt29829(t *testing.T) {
	bus := NewBus()
	apu := bus.apu
	apu.WriteRegister(0x4017, 0x00) // 4-step, IRQ enabled

	for i := uint32(0); i < 29829; i++ {
		apu.tickFrameSequencer()
	}
	assert.True(t, apu.frameIRQ)
}

func TestAPU_FrameSequencer5StepNeverAssertsIRQ(t *testing.T) {
	bus := NewBus()
	apu := bus.apu
	apu.WriteRegister(0x4017, 0x80) // 5-step

	for i := uint32(0); i < 37282; i++ {
		apu.tickFrameSequencer()
	}
	assert.False(t, apu.frameIRQ)
}

func TestAPU_StatusRegisterReflectsLengthCountersAndClearsFrameIRQ(t *testing.T) {
	bus := NewBus()
	apu := bus.apu
	apu.pulse1.length.counter = 5
	apu.frameIRQ = true

	status := apu.ReadRegister()
	assert.Equal(t, uint8(0x01|0x40), status)
	assert.False(t, apu.frameIRQ, "reading $4015 clears the frame IRQ flag")
}

func TestAPU_DMCEnableRestartsSampleWhenExhausted(t *testing.T) {
	bus := NewBus()
	apu := bus.apu
	apu.writeDMC(2, 0x00) // sampleAddr = 0xc000
	apu.writeDMC(3, 0x01) // sampleLength = (1<<4)+1 = 17

	apu.WriteRegister(0x4015, 0x10)
	assert.Equal(t, uint16(0xc000), apu.dmc.curAddr)
	assert.Equal(t, uint16(17), apu.dmc.bytesLeft)
}
