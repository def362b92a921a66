package cpu

import "github.com/valerio/go-z80emu/z80emu/bit"

// interrupt modes selected by ED x=1 z=6, indexed by y. The undefined
// encodings behave as IM 0.
var interruptModes = [8]uint8{0, 0, 1, 2, 0, 0, 1, 2}

// buildOpcodesED fills the ED table. Only x=1 and the block instructions
// (x=2, y>=4, z<=3) are defined, everything else is an 8 T-state NOP.
func buildOpcodesED() {
	for op := range opcodesED {
		opcodesED[op] = opcodeEDNop
	}

	for y := uint8(0); y < 8; y++ {
		y := y
		p, q := y>>1, y&1

		// IN r,(C); y=6 only sets the flags
		opcodesED[0x40|y<<3] = func(c *CPU) int {
			value := c.bus.ReadPort(c.getBC())
			if r := c.regPtr(y); r != nil {
				*r = value
			}
			c.f = (c.f & uint8(FlagC)) | sz53p[value]
			return 12
		}

		// OUT (C),r; y=6 outputs 0
		opcodesED[0x41|y<<3] = func(c *CPU) int {
			var value uint8
			if r := c.regPtr(y); r != nil {
				value = *r
			}
			c.bus.WritePort(c.getBC(), value)
			return 12
		}

		if q == 0 {
			opcodesED[0x42|y<<3] = func(c *CPU) int {
				c.sbcHL(c.getPair(p))
				return 15
			}
			opcodesED[0x43|y<<3] = func(c *CPU) int {
				c.writeWord(c.readImmediateWord(), c.getPair(p))
				return 20
			}
		} else {
			opcodesED[0x42|y<<3] = func(c *CPU) int {
				c.adcHL(c.getPair(p))
				return 15
			}
			opcodesED[0x43|y<<3] = func(c *CPU) int {
				c.setPair(p, c.readWord(c.readImmediateWord()))
				return 20
			}
		}

		opcodesED[0x44|y<<3] = opcodeNEG

		if y == 1 {
			opcodesED[0x4D] = opcodeRETI
		} else {
			opcodesED[0x45|y<<3] = opcodeRETN
		}

		mode := interruptModes[y]
		opcodesED[0x46|y<<3] = func(c *CPU) int {
			c.irq.mode = mode
			return 8
		}
	}

	opcodesED[0x47] = opcode0xED47
	opcodesED[0x4F] = opcode0xED4F
	opcodesED[0x57] = opcode0xED57
	opcodesED[0x5F] = opcode0xED5F
	opcodesED[0x67] = opcode0xED67
	opcodesED[0x6F] = opcode0xED6F

	opcodesED[0xA0] = opcodeLDI
	opcodesED[0xA1] = opcodeCPI
	opcodesED[0xA2] = opcodeINI
	opcodesED[0xA3] = opcodeOUTI
	opcodesED[0xA8] = opcodeLDD
	opcodesED[0xA9] = opcodeCPD
	opcodesED[0xAA] = opcodeIND
	opcodesED[0xAB] = opcodeOUTD
	opcodesED[0xB0] = opcodeLDIR
	opcodesED[0xB1] = opcodeCPIR
	opcodesED[0xB2] = opcodeINIR
	opcodesED[0xB3] = opcodeOTIR
	opcodesED[0xB8] = opcodeLDDR
	opcodesED[0xB9] = opcodeCPDR
	opcodesED[0xBA] = opcodeINDR
	opcodesED[0xBB] = opcodeOTDR
}

func opcodeEDNop(_ *CPU) int {
	return 8
}

//NEG
func opcodeNEG(c *CPU) int {
	c.neg()
	return 8
}

//RETN
func opcodeRETN(c *CPU) int {
	c.pc = c.pop()
	c.irq.returnFromInterrupt(false)
	return 14
}

//RETI
//#0xED4D:
func opcodeRETI(c *CPU) int {
	c.pc = c.pop()
	c.irq.returnFromInterrupt(true)
	return 14
}

//LD I, A
//#0xED47:
func opcode0xED47(c *CPU) int {
	c.i = c.a
	return 9
}

//LD R, A
//#0xED4F:
func opcode0xED4F(c *CPU) int {
	c.r = c.a
	return 9
}

//LD A, I
//#0xED57:
func opcode0xED57(c *CPU) int {
	c.a = c.i
	c.loadSpecialFlags()
	return 9
}

//LD A, R
//#0xED5F:
func opcode0xED5F(c *CPU) int {
	c.a = c.r
	c.loadSpecialFlags()
	return 9
}

// loadSpecialFlags sets the flags of LD A,I and LD A,R, where P/V reflects IFF2
func (c *CPU) loadSpecialFlags() {
	f := (c.f & uint8(FlagC)) | sz53[c.a]
	if c.irq.iff2 {
		f |= uint8(FlagPV)
	}
	c.f = f
}

//RRD
//#0xED67:
func opcode0xED67(c *CPU) int {
	address := c.getHL()
	value := c.read(address)
	c.write(address, c.a<<4|value>>4)
	c.a = (c.a & 0xF0) | (value & 0x0F)
	c.f = (c.f & uint8(FlagC)) | sz53p[c.a]
	return 18
}

//RLD
//#0xED6F:
func opcode0xED6F(c *CPU) int {
	address := c.getHL()
	value := c.read(address)
	c.write(address, value<<4|c.a&0x0F)
	c.a = (c.a & 0xF0) | (value >> 4)
	c.f = (c.f & uint8(FlagC)) | sz53p[c.a]
	return 18
}

// ldBlock copies (HL) to (DE) and steps HL and DE by delta.
func (c *CPU) ldBlock(delta uint16) {
	value := c.read(c.getHL())
	c.write(c.getDE(), value)
	c.setHL(c.getHL() + delta)
	c.setDE(c.getDE() + delta)
	c.setBC(c.getBC() - 1)

	n := value + c.a
	f := c.f & (uint8(FlagS) | uint8(FlagZ) | uint8(FlagC))
	f |= n & uint8(FlagX)
	f |= (n << 4) & uint8(FlagY)
	if c.getBC() != 0 {
		f |= uint8(FlagPV)
	}
	c.f = f
}

// cpBlock compares A with (HL) and steps HL by delta. It returns true when
// A matched.
func (c *CPU) cpBlock(delta uint16) bool {
	value := c.read(c.getHL())
	res := c.a - value
	half := (c.a ^ value ^ res) & uint8(FlagH)
	c.setHL(c.getHL() + delta)
	c.setBC(c.getBC() - 1)

	n := res
	if half != 0 {
		n--
	}
	f := (c.f & uint8(FlagC)) | uint8(FlagN) | half | (sz53[res] &^ flagsXY)
	f |= n & uint8(FlagX)
	f |= (n << 4) & uint8(FlagY)
	if c.getBC() != 0 {
		f |= uint8(FlagPV)
	}
	c.f = f

	return res == 0
}

// inBlock reads port BC into (HL), decrements B and steps HL by delta.
func (c *CPU) inBlock(delta uint16) {
	value := c.bus.ReadPort(c.getBC())
	c.write(c.getHL(), value)
	c.b--
	c.setHL(c.getHL() + delta)

	c.ioBlockFlags(value, uint16(c.c+uint8(delta)))
}

// outBlock writes (HL) to port BC after decrementing B, and steps HL by delta.
func (c *CPU) outBlock(delta uint16) {
	value := c.read(c.getHL())
	c.b--
	c.bus.WritePort(c.getBC(), value)
	c.setHL(c.getHL() + delta)

	c.ioBlockFlags(value, uint16(c.l))
}

// ioBlockFlags computes the (undocumented) flags of INI/IND/OUTI/OUTD.
func (c *CPU) ioBlockFlags(value uint8, addend uint16) {
	k := uint16(value) + (addend & 0xFF)
	f := sz53[c.b]
	if value&0x80 != 0 {
		f |= uint8(FlagN)
	}
	if k > 0xFF {
		f |= uint8(FlagH) | uint8(FlagC)
	}
	if bit.EvenParity(uint8(k&7) ^ c.b) {
		f |= uint8(FlagPV)
	}
	c.f = f
}

// repeat moves PC back onto the instruction when the block operation has
// to run again, and returns its cost.
func (c *CPU) repeat(again bool) int {
	if again {
		c.pc -= 2
		return 21
	}
	return 16
}

func opcodeLDI(c *CPU) int  { c.ldBlock(1); return 16 }
func opcodeLDD(c *CPU) int  { c.ldBlock(0xFFFF); return 16 }
func opcodeCPI(c *CPU) int  { c.cpBlock(1); return 16 }
func opcodeCPD(c *CPU) int  { c.cpBlock(0xFFFF); return 16 }
func opcodeINI(c *CPU) int  { c.inBlock(1); return 16 }
func opcodeIND(c *CPU) int  { c.inBlock(0xFFFF); return 16 }
func opcodeOUTI(c *CPU) int { c.outBlock(1); return 16 }
func opcodeOUTD(c *CPU) int { c.outBlock(0xFFFF); return 16 }

func opcodeLDIR(c *CPU) int {
	c.ldBlock(1)
	return c.repeat(c.getBC() != 0)
}

func opcodeLDDR(c *CPU) int {
	c.ldBlock(0xFFFF)
	return c.repeat(c.getBC() != 0)
}

func opcodeCPIR(c *CPU) int {
	found := c.cpBlock(1)
	return c.repeat(c.getBC() != 0 && !found)
}

func opcodeCPDR(c *CPU) int {
	found := c.cpBlock(0xFFFF)
	return c.repeat(c.getBC() != 0 && !found)
}

func opcodeINIR(c *CPU) int {
	c.inBlock(1)
	return c.repeat(c.b != 0)
}

func opcodeINDR(c *CPU) int {
	c.inBlock(0xFFFF)
	return c.repeat(c.b != 0)
}

func opcodeOTIR(c *CPU) int {
	c.outBlock(1)
	return c.repeat(c.b != 0)
}

func opcodeOTDR(c *CPU) int {
	c.outBlock(0xFFFF)
	return c.repeat(c.b != 0)
}
