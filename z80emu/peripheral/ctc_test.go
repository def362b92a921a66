package peripheral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-z80emu/z80emu/addr"
	"github.com/valerio/go-z80emu/z80emu/cpu"
)

var (
	_ cpu.DaisyChained    = (*CTCChannel)(nil)
	_ cpu.InterruptSource = (*Console)(nil)
	_ cpu.InterruptSource = (*LogSink)(nil)
)

func TestCTC_TimerMode(t *testing.T) {
	testCases := []struct {
		desc      string
		control   byte
		tc        byte
		cycles    int
		zeroCount int
	}{
		{
			desc:      "prescaler 16",
			control:   0x05, // timer, prescaler 16, time constant follows
			tc:        10,
			cycles:    16 * 10,
			zeroCount: 1,
		},
		{
			desc:      "prescaler 256",
			control:   0x25,
			tc:        2,
			cycles:    256 * 2 * 3,
			zeroCount: 3,
		},
		{
			desc:      "time constant 0 counts 256",
			control:   0x05,
			tc:        0,
			cycles:    16 * 255,
			zeroCount: 0,
		},
		{
			desc:      "not started without a time constant",
			control:   0x01,
			cycles:    1000,
			zeroCount: 0,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			c := NewCTC(addr.CTCBase, nil)
			zeros := 0
			c.Channel(1).OnZeroCount(func() { zeros++ })

			c.Out(addr.CTCBase+1, tC.control)
			if tC.control&ctcTimeConstant != 0 {
				c.Out(addr.CTCBase+1, tC.tc)
			}

			// deliver in uneven slices, as CPU steps do
			for left := tC.cycles; left > 0; left -= 7 {
				c.Advance(min(7, left), 0)
			}

			assert.Equal(t, tC.zeroCount, zeros)
		})
	}
}

func TestCTC_CounterMode(t *testing.T) {
	c := NewCTC(addr.CTCBase, nil)
	c.Out(addr.CTCBase, 0x40)   // vector, channel 0 with bit 0 clear
	c.Out(addr.CTCBase+2, 0xC5) // interrupt, counter mode
	c.Out(addr.CTCBase+2, 3)

	ch := c.Channel(2)
	c.Advance(10000, 0)
	assert.Equal(t, 3, ch.Counter())
	assert.Equal(t, byte(3), c.In(addr.CTCBase+2))

	c.Trigger(2)
	c.Trigger(2)
	assert.False(t, ch.Requesting())
	c.Trigger(2)
	assert.True(t, ch.Requesting())
	assert.Equal(t, 3, ch.Counter())
	assert.Equal(t, byte(0x44), ch.Vector())
}

func TestCTC_InService(t *testing.T) {
	c := NewCTC(addr.CTCBase, nil)
	c.Out(addr.CTCBase, 0x18)
	c.Out(addr.CTCBase, 0x85) // interrupt, timer, prescaler 16
	c.Out(addr.CTCBase, 1)

	ch := c.Channel(0)
	c.Advance(16, 0)
	require.True(t, ch.Requesting())
	assert.Equal(t, byte(0x18), ch.Vector())

	ch.Acknowledge()
	assert.False(t, ch.Requesting())

	// fires again while in service, held until RETI
	c.Advance(16, 0)
	assert.False(t, ch.Requesting())
	ch.ReturnFromInterrupt()
	assert.True(t, ch.Requesting())
}

func TestCTC_ResetStopsChannel(t *testing.T) {
	c := NewCTC(addr.CTCBase, nil)
	c.Out(addr.CTCBase+3, 0x85)
	c.Out(addr.CTCBase+3, 1)
	c.Advance(16, 0)
	require.True(t, c.Channel(3).Requesting())

	c.Out(addr.CTCBase+3, 0x03) // software reset
	assert.False(t, c.Channel(3).Requesting())

	c.Advance(1000, 0)
	assert.False(t, c.Channel(3).Requesting())
}

func TestCTC_InterruptsThroughCPU(t *testing.T) {
	bus := newPortBus()
	c := NewCTC(addr.CTCBase, nil)
	bus.handler = c

	// IM 2 with I=0x80, vector table entry for channel 1 at 0x8012
	bus.mem[0x8012], bus.mem[0x8013] = 0x00, 0x40
	program := []byte{
		0xED, 0x5E, // IM 2
		0x3E, 0x80, // LD A,0x80
		0xED, 0x47, // LD I,A
		0x3E, 0x10, // LD A,0x10
		0xD3, 0x10, // OUT (0x10),A: vector
		0x3E, 0x85, // LD A,0x85
		0xD3, 0x11, // OUT (0x11),A: channel 1 control
		0x3E, 0x01, // LD A,1
		0xD3, 0x11, // OUT (0x11),A: time constant
		0xFB,       // EI
		0x76,       // HALT
	}
	copy(bus.mem[:], program)

	z, err := cpu.New(bus)
	require.NoError(t, err)
	z.SetSP(0xF000)
	require.NoError(t, z.Interrupts().Register(c.Channel(1), 1))

	for i := 0; i < 50 && z.GetPC() != 0x4000; i++ {
		c.Advance(z.Step(), 0)
	}
	assert.Equal(t, uint16(0x4000), z.GetPC())
	assert.False(t, c.Channel(1).Requesting())
}

// portBus is a flat memory with one port handler
type portBus struct {
	mem     [0x10000]byte
	handler interface {
		In(uint16) byte
		Out(uint16, byte)
	}
}

func newPortBus() *portBus { return &portBus{} }

func (b *portBus) ReadMemory(a uint16) byte     { return b.mem[a] }
func (b *portBus) WriteMemory(a uint16, v byte) { b.mem[a] = v }
func (b *portBus) ReadPort(p uint16) byte       { return b.handler.In(p) }
func (b *portBus) WritePort(p uint16, v byte)   { b.handler.Out(p, v) }
