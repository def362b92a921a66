package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-z80emu/z80emu/cpu"
	"github.com/valerio/go-z80emu/z80emu/memory"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		desc string
		in   string
		want Breakpoint
	}{
		{desc: "bare address", in: "0x0100", want: Breakpoint{Kind: AtPC, Address: 0x0100}},
		{desc: "decimal address", in: "256", want: Breakpoint{Kind: AtPC, Address: 0x0100}},
		{desc: "explicit pc", in: "pc:0x38", want: Breakpoint{Kind: AtPC, Address: 0x0038}},
		{desc: "read", in: "r:0x4000", want: Breakpoint{Kind: OnRead, Address: 0x4000}},
		{desc: "write", in: "W:0x4000", want: Breakpoint{Kind: OnWrite, Address: 0x4000}},
		{desc: "8 bit port", in: "out:0x20", want: Breakpoint{Kind: OnPortOut, Address: 0x20, Mask: 0xFF}},
		{desc: "16 bit port", in: "in:0x1234", want: Breakpoint{Kind: OnPortIn, Address: 0x1234, Mask: 0xFFFF}},
		{desc: "register", in: "hl=0x4000", want: Breakpoint{Kind: WhenRegister, Register: RegHL, Value: 0x4000}},
		{desc: "register with spaces", in: " A = 7 ", want: Breakpoint{Kind: WhenRegister, Register: RegA, Value: 7}},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			got, err := Parse(tC.in)
			require.NoError(t, err)
			assert.Equal(t, tC.want, got)
		})
	}

	for _, bad := range []string{"", "zz:0x10", "q=1", "0x10000", "r:nope"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := Parse(bad)
			assert.ErrorIs(t, err, ErrInvalidBreakpoint)
		})
	}
}

func TestBreakpoint_String(t *testing.T) {
	for _, in := range []string{"0x0100", "r:0x4000", "w:0x4000", "out:0x20", "in:0x1234", "HL=0x4000"} {
		b, err := Parse(in)
		require.NoError(t, err)
		again, err := Parse(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, again, in)
	}
}

func TestBreakpoints_Check(t *testing.T) {
	mem := memory.New()
	require.NoError(t, mem.Load(0x0100, []byte{0x77}))       // LD (HL),A
	require.NoError(t, mem.Load(0x0200, []byte{0xD3, 0x20})) // OUT (0x20),A
	require.NoError(t, mem.Load(0x0300, []byte{0xDB, 0x30})) // IN A,(0x30)

	regs := cpu.Snapshot{A: 0x12, H: 0x40, L: 0x00, SP: 0x8000}

	testCases := []struct {
		desc string
		bp   string
		pc   uint16
		want bool
	}{
		{desc: "pc hit", bp: "0x0100", pc: 0x0100, want: true},
		{desc: "pc miss", bp: "0x0101", pc: 0x0100},
		{desc: "write hit", bp: "w:0x4000", pc: 0x0100, want: true},
		{desc: "read miss on a write", bp: "r:0x4000", pc: 0x0100},
		{desc: "port out with 8 bit mask", bp: "out:0x20", pc: 0x0200, want: true},
		{desc: "port out with full address", bp: "out:0x1220", pc: 0x0200, want: true},
		{desc: "port out wrong high byte", bp: "out:0x1320", pc: 0x0200},
		{desc: "port in", bp: "in:0x30", pc: 0x0300, want: true},
		{desc: "port in is not out", bp: "out:0x30", pc: 0x0300},
		{desc: "register", bp: "a=0x12", pc: 0x0000, want: true},
		{desc: "register miss", bp: "sp=0", pc: 0x0000},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			bp, err := Parse(tC.bp)
			require.NoError(t, err)

			var bs Breakpoints
			bs.Add(bp)
			r := regs
			r.PC = tC.pc

			got, hit := bs.Check(r, mem, nil)
			assert.Equal(t, tC.want, hit)
			if tC.want {
				assert.Equal(t, bp, got)
			}
		})
	}
}

// fixedQuery reports the same upcoming interrupt on every call.
type fixedQuery struct {
	acceptance cpu.Acceptance
	ok         bool
}

func (q fixedQuery) Upcoming() (cpu.Acceptance, bool) { return q.acceptance, q.ok }

func TestBreakpoints_CheckNextStep(t *testing.T) {
	mem := memory.New()
	require.NoError(t, mem.Load(0x0100, []byte{0x77})) // LD (HL),A

	testCases := []struct {
		desc string
		bp   string
		regs cpu.Snapshot
		irq  InterruptQuery
		want bool
	}{
		{
			desc: "halted CPU performs no accesses",
			bp:   "w:0x4000",
			regs: cpu.Snapshot{PC: 0x0100, H: 0x40, Halted: true},
		},
		{
			desc: "halted CPU still accepts an NMI",
			bp:   "w:0x7FFF",
			regs: cpu.Snapshot{PC: 0x0100, SP: 0x8000, Halted: true},
			irq:  fixedQuery{acceptance: cpu.Acceptance{NMI: true}, ok: true},
			want: true,
		},
		{
			desc: "interrupt push replaces the instruction",
			bp:   "w:0x4000",
			regs: cpu.Snapshot{PC: 0x0100, H: 0x40, SP: 0x8000, IM: 1},
			irq:  fixedQuery{ok: true},
		},
		{
			desc: "mode 1 push",
			bp:   "w:0x7FFE",
			regs: cpu.Snapshot{PC: 0x0100, SP: 0x8000, IM: 1},
			irq:  fixedQuery{ok: true},
			want: true,
		},
		{
			desc: "mode 2 vector table read",
			bp:   "r:0x8041",
			regs: cpu.Snapshot{PC: 0x0100, SP: 0x9000, IM: 2, I: 0x80},
			irq:  fixedQuery{acceptance: cpu.Acceptance{Vector: 0x40}, ok: true},
			want: true,
		},
		{
			desc: "no interrupt decodes at PC",
			bp:   "w:0x4000",
			regs: cpu.Snapshot{PC: 0x0100, H: 0x40},
			irq:  fixedQuery{},
			want: true,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			bp, err := Parse(tC.bp)
			require.NoError(t, err)

			var bs Breakpoints
			bs.Add(bp)

			_, hit := bs.Check(tC.regs, mem, tC.irq)
			assert.Equal(t, tC.want, hit)
		})
	}
}

func TestBreakpoints_Set(t *testing.T) {
	var bs Breakpoints
	bs.Add(Breakpoint{Kind: AtPC, Address: 1})
	bs.Add(Breakpoint{Kind: AtPC, Address: 2})
	assert.Equal(t, 2, bs.Len())

	assert.True(t, bs.Remove(0))
	assert.False(t, bs.Remove(5))
	assert.Equal(t, []Breakpoint{{Kind: AtPC, Address: 2}}, bs.List())

	bs.Clear()
	assert.Equal(t, 0, bs.Len())
}

func TestTakeMemorySnapshot(t *testing.T) {
	mem := memory.New()
	mem.Write(0xFFFF, 0xAA)
	mem.Write(0x0000, 0xBB)

	snap := TakeMemorySnapshot(mem, 0xFFFF, 2)
	assert.Equal(t, uint16(0xFFFF), snap.StartAddr)
	assert.Equal(t, []uint8{0xAA, 0xBB}, snap.Bytes)
	assert.Len(t, FetchInstruction(mem, 0), MaxInstructionLength)
}
