package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBus is a flat 64K memory with an 8 bit port space and a log of the
// accesses it served.
type testBus struct {
	mem      [0x10000]byte
	ports    [0x100]byte
	portLog  []portAccess
	memLog   []memAccess
	recordOn bool
}

type memAccess struct {
	address uint16
	write   bool
}

type portAccess struct {
	port  uint16
	write bool
	value byte
}

func (b *testBus) ReadMemory(address uint16) byte {
	if b.recordOn {
		b.memLog = append(b.memLog, memAccess{address: address})
	}
	return b.mem[address]
}

func (b *testBus) WriteMemory(address uint16, value byte) {
	if b.recordOn {
		b.memLog = append(b.memLog, memAccess{address: address, write: true})
	}
	b.mem[address] = value
}

func (b *testBus) ReadPort(port uint16) byte {
	b.portLog = append(b.portLog, portAccess{port: port})
	return b.ports[port&0xFF]
}

func (b *testBus) WritePort(port uint16, value byte) {
	b.portLog = append(b.portLog, portAccess{port: port, write: true, value: value})
	b.ports[port&0xFF] = value
}

// testClock counts what the CPU reported.
type testClock struct {
	total uint64
	calls int
	halts []bool
}

func (t *testClock) Advance(delta int, total uint64) {
	t.calls++
	t.total = total
}

func (t *testClock) HaltChanged(halted bool) {
	t.halts = append(t.halts, halted)
}

func newTestCPU(t *testing.T, program ...byte) (*CPU, *testBus) {
	t.Helper()
	bus := &testBus{}
	copy(bus.mem[:], program)
	c, err := New(bus)
	require.NoError(t, err)
	c.sp = 0x8000
	return c, bus
}

func TestNew(t *testing.T) {
	t.Run("fails without a bus", func(t *testing.T) {
		c, err := New(nil)
		assert.Nil(t, c)
		assert.ErrorIs(t, err, ErrBusNotAttached)
	})

	t.Run("starts in the reset state", func(t *testing.T) {
		c, err := New(&testBus{})
		require.NoError(t, err)

		assert.Equal(t, uint16(0), c.GetPC())
		assert.Equal(t, uint16(0xFFFF), c.GetSP())
		assert.Equal(t, uint16(0xFFFF), c.GetAF())
		assert.Equal(t, Running, c.State())
		assert.False(t, c.Interrupts().IFF1())
		assert.Equal(t, uint8(0), c.Interrupts().Mode())
		assert.Equal(t, uint64(0), c.GetCycles())
	})
}

func TestStep_NOPIdempotence(t *testing.T) {
	c, _ := newTestCPU(t)
	c.pc = 0xFF80
	c.f = 0xA5

	total := 0
	for i := 0; i < 256; i++ {
		total += c.Step()
	}

	assert.Equal(t, uint16(0x0080), c.GetPC(), "PC wraps around mod 65536")
	assert.Equal(t, 4*256, total)
	assert.Equal(t, uint64(4*256), c.GetCycles())
	assert.Equal(t, uint8(0xA5), c.GetF())
}

func TestStep_ReportsToClock(t *testing.T) {
	clock := &testClock{}
	bus := &testBus{}
	bus.mem[0] = 0x00 // NOP
	bus.mem[1] = 0x76 // HALT
	c, err := New(bus, WithClock(clock))
	require.NoError(t, err)

	c.Step()
	c.Step()
	c.Step()

	assert.Equal(t, 3, clock.calls)
	assert.Equal(t, uint64(12), clock.total)
	assert.Equal(t, []bool{true}, clock.halts)
}

// panickingClock fails inside HaltChanged, like a listener that panics.
type panickingClock struct {
	testClock
}

func (p *panickingClock) HaltChanged(halted bool) {
	p.testClock.HaltChanged(halted)
	panic("halt listener failed")
}

func TestStep_HaltReportedAfterAccounting(t *testing.T) {
	testCases := []struct {
		desc    string
		program []byte
		steps   int
		cycles  uint64
		pc      uint16
	}{
		{desc: "HALT as the first instruction", program: []byte{0x76}, steps: 1, cycles: 4, pc: 1},
		{desc: "HALT after a NOP", program: []byte{0x00, 0x76}, steps: 2, cycles: 8, pc: 2},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			clock := &panickingClock{}
			bus := &testBus{}
			copy(bus.mem[:], tC.program)
			c, err := New(bus, WithClock(clock))
			require.NoError(t, err)

			for i := 0; i < tC.steps-1; i++ {
				c.Step()
			}
			assert.Panics(t, func() { c.Step() })

			assert.Equal(t, tC.cycles, c.GetCycles())
			assert.Equal(t, tC.cycles, clock.total)
			assert.Equal(t, tC.steps, clock.calls)
			assert.True(t, c.IsHalted())
			assert.Equal(t, tC.pc, c.GetPC())
			assert.Equal(t, []bool{true}, clock.halts)

			// the transition is not reported twice
			assert.NotPanics(t, func() { c.Step() })
			assert.Equal(t, tC.cycles+4, clock.total)
		})
	}
}

func TestHALT(t *testing.T) {
	t.Run("stays halted with interrupts disabled", func(t *testing.T) {
		c, _ := newTestCPU(t, 0x76)
		src := &fakeSource{requesting: true}
		require.NoError(t, c.Interrupts().Register(src, 0))

		c.Step()
		assert.True(t, c.IsHalted())
		pc := c.GetPC()
		assert.Equal(t, uint16(1), pc)

		for i := 0; i < 10; i++ {
			assert.Equal(t, 4, c.Step())
			assert.Equal(t, pc, c.GetPC())
		}
		assert.Equal(t, uint64(4+10*4), c.GetCycles())
		assert.True(t, c.IsHalted())
		assert.Equal(t, Requested, c.Interrupts().State())
	})

	t.Run("refresh register keeps counting while halted", func(t *testing.T) {
		c, _ := newTestCPU(t, 0x76)
		c.Step()
		r := c.GetR()
		c.Step()
		c.Step()
		assert.Equal(t, (r+2)&0x7F, c.GetR())
	})

	t.Run("NMI leaves the halted state", func(t *testing.T) {
		c, bus := newTestCPU(t, 0x76)
		c.Step()

		c.Interrupts().TriggerNMI()
		assert.Equal(t, 11, c.Step())
		assert.False(t, c.IsHalted())
		assert.Equal(t, uint16(0x0066), c.GetPC())
		// return address is the instruction after HALT
		assert.Equal(t, byte(0x01), bus.mem[0x7FFE])
		assert.Equal(t, byte(0x00), bus.mem[0x7FFF])
	})
}

func TestRefreshRegister(t *testing.T) {
	testCases := []struct {
		desc    string
		program []byte
		want    uint8
	}{
		{desc: "unprefixed", program: []byte{0x00}, want: 1},
		{desc: "CB prefix", program: []byte{0xCB, 0x00}, want: 2},
		{desc: "ED prefix", program: []byte{0xED, 0x44}, want: 2},
		{desc: "DD prefix", program: []byte{0xDD, 0x21, 0x00, 0x00}, want: 2},
		{desc: "DD CB prefix", program: []byte{0xDD, 0xCB, 0x00, 0x06}, want: 2},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			c, _ := newTestCPU(t, tC.program...)
			c.r = 0x80
			c.Step()
			assert.Equal(t, 0x80|tC.want, c.GetR(), "bit 7 is preserved")
		})
	}

	t.Run("wraps in 7 bits", func(t *testing.T) {
		c, _ := newTestCPU(t)
		c.r = 0xFF
		c.Step()
		assert.Equal(t, uint8(0x80), c.GetR())
	})
}

func TestSnapshotRestore(t *testing.T) {
	c, _ := newTestCPU(t)
	s := Snapshot{
		A: 0x01, F: 0x02, B: 0x03, C: 0x04, D: 0x05, E: 0x06, H: 0x07, L: 0x08,
		AltA: 0x11, AltF: 0x12, AltB: 0x13, AltC: 0x14, AltD: 0x15, AltE: 0x16, AltH: 0x17, AltL: 0x18,
		IX: 0x1234, IY: 0x5678, SP: 0x9ABC, PC: 0xDEF0,
		I: 0x20, R: 0x42, IFF1: true, IFF2: true, IM: 2,
	}

	c.Restore(s)
	assert.Equal(t, s, c.Snapshot())
	assert.Equal(t, uint16(0x0102), s.AF())
	assert.Equal(t, uint16(0x0304), s.BC())
	assert.Equal(t, uint16(0x0506), s.DE())
	assert.Equal(t, uint16(0x0708), s.HL())
	assert.True(t, s.Flag(FlagN))
	assert.False(t, s.Flag(FlagC))
}

func TestExchange(t *testing.T) {
	c, _ := newTestCPU(t, 0x08, 0xD9, 0xEB)
	c.Restore(Snapshot{
		A: 0x01, F: 0x02, B: 0x03, C: 0x04, D: 0x05, E: 0x06, H: 0x07, L: 0x08,
		AltA: 0x11, AltF: 0x12, AltB: 0x13, AltC: 0x14, AltD: 0x15, AltE: 0x16, AltH: 0x17, AltL: 0x18,
		SP: 0x8000,
	})

	c.Step() // EX AF,AF'
	assert.Equal(t, uint16(0x1112), c.GetAF())
	assert.Equal(t, uint16(0x0304), c.GetBC())

	c.Step() // EXX
	assert.Equal(t, uint16(0x1314), c.GetBC())
	assert.Equal(t, uint16(0x1516), c.GetDE())
	assert.Equal(t, uint16(0x1718), c.GetHL())
	assert.Equal(t, uint16(0x1112), c.GetAF())

	c.Step() // EX DE,HL
	assert.Equal(t, uint16(0x1718), c.GetDE())
	assert.Equal(t, uint16(0x1516), c.GetHL())
}

func TestConditionMet(t *testing.T) {
	testCases := []struct {
		desc string
		f    Flag
		cc   uint8
		want bool
	}{
		{desc: "NZ with Z clear", f: 0, cc: 0, want: true},
		{desc: "NZ with Z set", f: FlagZ, cc: 0, want: false},
		{desc: "Z with Z set", f: FlagZ, cc: 1, want: true},
		{desc: "NC with C set", f: FlagC, cc: 2, want: false},
		{desc: "C with C set", f: FlagC, cc: 3, want: true},
		{desc: "PO with P/V clear", f: 0, cc: 4, want: true},
		{desc: "PE with P/V set", f: FlagPV, cc: 5, want: true},
		{desc: "P with S set", f: FlagS, cc: 6, want: false},
		{desc: "M with S set", f: FlagS, cc: 7, want: true},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.want, ConditionMet(uint8(tC.f), tC.cc))
		})
	}
}

func TestFlagString(t *testing.T) {
	assert.Equal(t, "--------", FlagString(0))
	assert.Equal(t, "SZYHXPNC", FlagString(0xFF))
	assert.Equal(t, "-Z-----C", FlagString(uint8(FlagZ|FlagC)))
}
