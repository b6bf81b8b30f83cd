package nes

import (
	"encoding/json"
	"os"
	"path"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/maps"
)

// Test_CPU_SingleStepTest runs the CPU against the community single-step
// JSON test suite (https://github.com/SingleStepTests/65x02) when
// SINGLE_STEP_TEST_DIR points at a checkout of it. Skipped otherwise, the
// same opt-in pattern Test_BusTic_Nestest uses for its golden log.
func Test_CPU_SingleStepTest(t *testing.T) {
	t.Parallel()

	type cpuState struct {
		PC uint16 `json:"pc"`
		S  uint8  `json:"s"`
		A  uint8  `json:"a"`
		X  uint8  `json:"x"`
		Y  uint8  `json:"y"`
		P  uint8  `json:"p"`

		// element[0] is address, element[1] is value
		RAM [][]uint16 `json:"ram"`
	}

	type testInstance struct {
		Name    string   `json:"name"`
		Initial cpuState `json:"initial"`
		Final   cpuState `json:"final"`

		// element[0] is address, element[1] is value, element[2] is op
		Cycles [][]any `json:"cycles"`
	}

	dir := os.Getenv("SINGLE_STEP_TEST_DIR")
	if dir == "" {
		t.Skip("skipping test because SINGLE_STEP_TEST_DIR is not set")
		return
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	mem := newSingleStepMemMock(t)
	doTest := func(t *testing.T, test testInstance) {
		mem.reset()
		for _, addrVal := range test.Initial.RAM {
			mem.set(addrVal[0], uint8(addrVal[1]))
		}
		for _, cyc := range test.Cycles {
			op := cyc[2].(string)
			addr := uint16(cyc[0].(float64))
			data := uint8(cyc[1].(float64))
			mem.allow(op, addr, data)
		}

		cpu := NewCPU(mem)
		cpu.pc = test.Initial.PC
		cpu.sp = test.Initial.S
		cpu.a = test.Initial.A
		cpu.x = test.Initial.X
		cpu.y = test.Initial.Y
		cpu.p = test.Initial.P

		cpu.Tic()

		if cpu.pc != test.Final.PC {
			t.Fatalf("expected PC %04X, got %04X", test.Final.PC, cpu.pc)
		}
		if cpu.sp != test.Final.S {
			t.Fatalf("expected S %02X, got %02X", test.Final.S, cpu.sp)
		}
		if cpu.a != test.Final.A {
			t.Fatalf("expected A %02X, got %02X", test.Final.A, cpu.a)
		}
		if cpu.x != test.Final.X {
			t.Fatalf("expected X %02X, got %02X", test.Final.X, cpu.x)
		}
		if cpu.y != test.Final.Y {
			t.Fatalf("expected Y %02X, got %02X", test.Final.Y, cpu.y)
		}
		if cpu.p != test.Final.P {
			t.Fatalf("expected P %02X, got %02X", test.Final.P, cpu.p)
		}
		for _, addrVal := range test.Final.RAM {
			mem.mustBe(addrVal[0], uint8(addrVal[1]))
		}
	}

	var tests []testInstance
	for _, file := range files {
		opcodeStr := path.Base(file.Name())[:2]
		opcode, err := strconv.ParseUint(opcodeStr, 16, 8)
		if err != nil {
			t.Fatalf("failed to parse opcode from file name %s: %v", file.Name(), err)
		}

		fileData, err := os.ReadFile(dir + "/" + file.Name())
		if err != nil {
			t.Fatalf("failed to read file %s: %v", file.Name(), err)
		}

		tests = tests[:0]
		if err := json.Unmarshal(fileData, &tests); err != nil {
			t.Fatalf("failed to unmarshal file %s: %v", file.Name(), err)
		}

		t.Run(file.Name(), func(t *testing.T) {
			if !opcodeIsSupported(uint8(opcode)) {
				t.Skipf("skipping test for opcode %02X because it is not supported", opcode)
				return
			}
			for _, test := range tests {
				doTest(t, test)
			}
		})
	}
}

// singleStepMemMock backs the single-step suite's full 64KiB address space
// and enforces that every write lands at an address/value the test case's
// cycle log actually expects, catching stray writes outside the recorded
// bus trace.
type singleStepMemMock struct {
	t       *testing.T
	data    []uint8
	allowed map[uint32]struct{}
}

func newSingleStepMemMock(t *testing.T) *singleStepMemMock {
	return &singleStepMemMock{
		t:       t,
		data:    make([]uint8, 0x10000),
		allowed: make(map[uint32]struct{}),
	}
}

func (m *singleStepMemMock) asKey(addr uint16, data uint8) uint32 {
	return uint32(addr) | uint32(data)<<16
}

func (m *singleStepMemMock) allow(_ string, addr uint16, data uint8) {
	m.allowed[m.asKey(addr, data)] = struct{}{}
}

func (m *singleStepMemMock) mustBe(addr uint16, data uint8) {
	if m.data[addr] != data {
		m.t.Fatalf("expected %02X at address %04X, got %02X", data, addr, m.data[addr])
	}
}

func (m *singleStepMemMock) set(addr uint16, data uint8) { m.data[addr] = data }

func (m *singleStepMemMock) reset() {
	for i := range m.data {
		m.data[i] = 0
	}
	maps.Clear(m.allowed)
}

func (m *singleStepMemMock) Read8(addr uint16) uint8 {
	return m.data[addr]
}

func (m *singleStepMemMock) Write8(addr uint16, data uint8) {
	if _, ok := m.allowed[m.asKey(addr, data)]; !ok {
		m.t.Fatalf("not allowed write to address %04X with value %02X", addr, data)
	}
	m.data[addr] = data
}

type memMock struct {
	mock.Mock
}

func (m *memMock) Read8(addr uint16) uint8 {
	args := m.Called(addr)
	return args.Get(0).(uint8)
}

func (m *memMock) Write8(addr uint16, data uint8) {
	m.Called(addr, data)
}

func Test_ADC(t *testing.T) {
	type testArgs struct {
		initA          uint8
		operandValue   uint8
		initP          uint8
		expectedA      uint8
		expectedP      uint8
		pageCrossed    bool
		expectedCycles uint8
	}

	testDo := func(t *testing.T, in testArgs) {
		cpu := NewCPU(nil)
		cpu.a = in.initA
		cpu.p = in.initP
		cpu.operandValue = in.operandValue
		cpu.pageCrossed = in.pageCrossed

		cpu.adc()

		assert.Equal(t, in.expectedA, cpu.a, "A register")
		assert.Equal(t, in.expectedP, cpu.p, "P register")
		assert.Equal(t, in.expectedCycles, cpu.cycles, "Cycles")
	}

	t.Run("zero result, no carry", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0,
			operandValue: 0,
			initP:        0,
			expectedA:    0,
			expectedP:    flagZ,
		})
	})

	t.Run("simple addition, no carry", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0x10,
			operandValue: 0x20,
			initP:        0,
			expectedA:    0x30,
			expectedP:    0,
		})
	})

	t.Run("overflow with carry set", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0xff,
			operandValue: 0x1,
			initP:        0,
			expectedA:    0,
			expectedP:    flagZ | flagC,
		})
	})

	t.Run("negative result with overflow", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0x7f,
			operandValue: 0x1,
			initP:        0,
			expectedA:    0x80,
			expectedP:    flagN | flagV,
		})
	})

	t.Run("simple addition with overflow, result is negative", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0x50,
			operandValue: 0x50,
			initP:        0,
			expectedA:    0xa0,
			expectedP:    flagN | flagV,
		})
	})

	t.Run("addition with carry in, result is negative", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0x50,
			operandValue: 0x50,
			initP:        flagC,
			expectedA:    0xa1,
			expectedP:    flagN | flagV,
		})
	})

	t.Run("overflow with carry in, result is positive", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0xff,
			operandValue: 0x1,
			initP:        flagC,
			expectedA:    0x01,
			expectedP:    flagC,
		})
	})

	t.Run("addition with carry in, zero result", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0xff,
			operandValue: 0x00,
			initP:        flagC,
			expectedA:    0x00,
			expectedP:    flagZ | flagC,
		})
	})

	t.Run("add cycle if page crossed", func(t *testing.T) {
		testDo(t, testArgs{
			initA:          0,
			operandValue:   0,
			initP:          0,
			expectedA:      0,
			expectedP:      flagZ,
			pageCrossed:    true,
			expectedCycles: 1,
		})
	})
}

func Test_AND(t *testing.T) {
	type testArgs struct {
		initA          uint8
		operandValue   uint8
		initP          uint8
		expectedA      uint8
		expectedP      uint8
		pageCrossed    bool
		expectedCycles uint8
	}

	testDo := func(t *testing.T, in testArgs) {
		cpu := NewCPU(nil)
		cpu.a = in.initA
		cpu.p = in.initP
		cpu.operandValue = in.operandValue
		cpu.pageCrossed = in.pageCrossed

		cpu.and()

		assert.Equal(t, in.expectedA, cpu.a, "A register")
		assert.Equal(t, in.expectedP, cpu.p, "P register")
		assert.Equal(t, in.expectedCycles, cpu.cycles, "Cycles")
	}

	t.Run("ff&0f=0f", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0xff,
			operandValue: 0x0f,
			initP:        0,
			expectedA:    0x0f,
			expectedP:    0,
		})
	})

	t.Run("ff&00=00", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0xff,
			operandValue: 0x00,
			initP:        0,
			expectedA:    0x00,
			expectedP:    flagZ,
		})
	})

	t.Run("ff&ff=ff", func(t *testing.T) {
		testDo(t, testArgs{
			initA:        0xff,
			operandValue: 0xff,
			initP:        0,
			expectedA:    0xff,
			expectedP:    flagN,
		})
	})

	t.Run("add cycle if page crossed", func(t *testing.T) {
		testDo(t, testArgs{
			initA:          0,
			operandValue:   0,
			initP:          0,
			expectedA:      0,
			expectedP:      flagZ,
			pageCrossed:    true,
			expectedCycles: 1,
		})
	})
}

func Test_ASL(t *testing.T) {
	t.Run("ACC with carry", func(t *testing.T) {
		expectedA := uint8(0x6)
		expectedP := flagC
		cpu := NewCPU(nil)
		cpu.operandValue = 0x83
		cpu.p = 0
		cpu.addrMode = addrModeACC

		cpu.asl()

		assert.Equal(t, expectedA, cpu.a, "A register")
		assert.Equal(t, expectedP, cpu.p, "P register")
	})

	t.Run("ACC with negative", func(t *testing.T) {
		expectedA := uint8(0x82)
		expectedP := flagN
		cpu := NewCPU(nil)
		cpu.operandValue = 0x41
		cpu.p = 0
		cpu.addrMode = addrModeACC

		cpu.asl()

		assert.Equal(t, expectedA, cpu.a, "A register")
		assert.Equal(t, expectedP, cpu.p, "P register")
	})

	t.Run("ACC with zero", func(t *testing.T) {
		expectedA := uint8(0)
		expectedP := flagZ
		cpu := NewCPU(nil)
		cpu.operandValue = 0x0
		cpu.p = 0
		cpu.addrMode = addrModeACC

		cpu.asl()

		assert.Equal(t, expectedA, cpu.a, "A register")
		assert.Equal(t, expectedP, cpu.p, "P register")
	})

	t.Run("ZP simple", func(t *testing.T) {
		expectedAddr := uint16(0xff)
		expectedValue := uint8(0x24)
		mem := new(memMock)
		mem.On("Write8", expectedAddr, expectedValue).Return()

		expectedP := uint8(0)
		cpu := NewCPU(mem)
		cpu.p = 0
		cpu.operandValue = 0x12
		cpu.operandAddr = expectedAddr
		cpu.addrMode = addrModeZP

		cpu.asl()

		assert.Equal(t, expectedP, cpu.p, "P register")
		mem.AssertExpectations(t)
	})
}
