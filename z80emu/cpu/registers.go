package cpu

import "github.com/valerio/go-z80emu/z80emu/bit"

// registerSet is one bank of the 8 bit registers. The CPU holds the main
// bank and the shadow bank used by EX AF,AF' and EXX.
type registerSet struct {
	a, f uint8
	b, c uint8
	d, e uint8
	h, l uint8
}

// Snapshot is a value copy of the register file and interrupt state.
type Snapshot struct {
	A, F, B, C, D, E, H, L uint8
	AltA, AltF, AltB, AltC uint8
	AltD, AltE, AltH, AltL uint8
	IX, IY, SP, PC         uint16
	I, R                   uint8
	IFF1, IFF2             bool
	IM                     uint8
	Halted                 bool
}

func (s Snapshot) AF() uint16 { return bit.Combine(s.A, s.F) }
func (s Snapshot) BC() uint16 { return bit.Combine(s.B, s.C) }
func (s Snapshot) DE() uint16 { return bit.Combine(s.D, s.E) }
func (s Snapshot) HL() uint16 { return bit.Combine(s.H, s.L) }

// Flag reports whether flag f is set in the F register.
func (s Snapshot) Flag(f Flag) bool { return s.F&uint8(f) != 0 }

// Snapshot copies the current register file.
func (c *CPU) Snapshot() Snapshot {
	return Snapshot{
		A: c.a, F: c.f, B: c.b, C: c.c, D: c.d, E: c.e, H: c.h, L: c.l,
		AltA: c.shadow.a, AltF: c.shadow.f, AltB: c.shadow.b, AltC: c.shadow.c,
		AltD: c.shadow.d, AltE: c.shadow.e, AltH: c.shadow.h, AltL: c.shadow.l,
		IX:     c.getIX(),
		IY:     c.getIY(),
		SP:     c.sp,
		PC:     c.pc,
		I:      c.i,
		R:      c.r,
		IFF1:   c.irq.iff1,
		IFF2:   c.irq.iff2,
		IM:     c.irq.mode,
		Halted: c.state == Halted,
	}
}

// Restore loads every register from s. The T-state counter is untouched.
func (c *CPU) Restore(s Snapshot) {
	c.registerSet = registerSet{a: s.A, f: s.F, b: s.B, c: s.C, d: s.D, e: s.E, h: s.H, l: s.L}
	c.shadow = registerSet{a: s.AltA, f: s.AltF, b: s.AltB, c: s.AltC, d: s.AltD, e: s.AltE, h: s.AltH, l: s.AltL}
	c.setIX(s.IX)
	c.setIY(s.IY)
	c.sp = s.SP
	c.pc = s.PC
	c.i = s.I
	c.r = s.R
	c.irq.iff1 = s.IFF1
	c.irq.iff2 = s.IFF2
	c.irq.mode = s.IM % 3
	if s.Halted {
		c.setState(Halted)
	} else {
		c.setState(Running)
	}
	c.reportHalt()
}

func (c *CPU) exchangeAF() {
	c.a, c.shadow.a = c.shadow.a, c.a
	c.f, c.shadow.f = c.shadow.f, c.f
}

func (c *CPU) exchangeAll() {
	c.b, c.shadow.b = c.shadow.b, c.b
	c.c, c.shadow.c = c.shadow.c, c.c
	c.d, c.shadow.d = c.shadow.d, c.d
	c.e, c.shadow.e = c.shadow.e, c.e
	c.h, c.shadow.h = c.shadow.h, c.h
	c.l, c.shadow.l = c.shadow.l, c.l
}
