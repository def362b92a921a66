package cpu

import (
	"github.com/valerio/go-z80emu/z80emu/addr"
	"github.com/valerio/go-z80emu/z80emu/bit"
)

// buildOpcodes fills the unprefixed table. Opcodes are laid out as
// x(2 bits) y(3 bits) z(3 bits); the regular blocks are generated, the rest
// are named functions below. Cycle counts are for the unprefixed form,
// execute adds the DD/FD costs.
func buildOpcodes() {
	for y := uint8(0); y < 8; y++ {
		y := y
		// INC r / DEC r / LD r,n
		if y == 6 {
			opcodes[0x34] = opcodeIncMem
			opcodes[0x35] = opcodeDecMem
			opcodes[0x36] = opcodeLdMemImmediate
		} else {
			opcodes[y<<3|4] = func(c *CPU) int {
				c.inc(c.regPtrX(y))
				return 4
			}
			opcodes[y<<3|5] = func(c *CPU) int {
				c.dec(c.regPtrX(y))
				return 4
			}
			opcodes[y<<3|6] = func(c *CPU) int {
				*c.regPtrX(y) = c.readImmediate()
				return 7
			}
		}

		// LD r,r'
		for z := uint8(0); z < 8; z++ {
			z := z
			op := 0x40 | y<<3 | z
			switch {
			case y == 6 && z == 6:
				opcodes[op] = opcode0x76
			case z == 6:
				opcodes[op] = func(c *CPU) int {
					*c.regPtr(y) = c.read(c.operandAddress())
					return 7
				}
			case y == 6:
				opcodes[op] = func(c *CPU) int {
					c.write(c.operandAddress(), *c.regPtr(z))
					return 7
				}
			default:
				opcodes[op] = func(c *CPU) int {
					*c.regPtrX(y) = *c.regPtrX(z)
					return 4
				}
			}
		}

		// ALU A,r
		for z := uint8(0); z < 8; z++ {
			z := z
			op := 0x80 | y<<3 | z
			if z == 6 {
				opcodes[op] = func(c *CPU) int {
					c.alu(y, c.read(c.operandAddress()))
					return 7
				}
				continue
			}
			opcodes[op] = func(c *CPU) int {
				c.alu(y, *c.regPtrX(z))
				return 4
			}
		}

		// ALU A,n
		opcodes[0xC6|y<<3] = func(c *CPU) int {
			c.alu(y, c.readImmediate())
			return 7
		}

		// RET cc
		opcodes[0xC0|y<<3] = func(c *CPU) int {
			if !ConditionMet(c.f, y) {
				return 5
			}
			c.pc = c.pop()
			return 11
		}

		// JP cc,nn
		opcodes[0xC2|y<<3] = func(c *CPU) int {
			nn := c.readImmediateWord()
			if ConditionMet(c.f, y) {
				c.pc = nn
			}
			return 10
		}

		// CALL cc,nn
		opcodes[0xC4|y<<3] = func(c *CPU) int {
			nn := c.readImmediateWord()
			if !ConditionMet(c.f, y) {
				return 10
			}
			c.push(c.pc)
			c.pc = nn
			return 17
		}

		// RST p
		opcodes[0xC7|y<<3] = func(c *CPU) int {
			c.push(c.pc)
			c.pc = addr.Restart(y << 3)
			return 11
		}
	}

	// 16 bit register pairs: BC DE HL SP, and BC DE HL AF for PUSH/POP
	for p := uint8(0); p < 4; p++ {
		p := p
		opcodes[0x01|p<<4] = func(c *CPU) int {
			c.setPair(p, c.readImmediateWord())
			return 10
		}
		opcodes[0x03|p<<4] = func(c *CPU) int {
			c.setPair(p, c.getPair(p)+1)
			return 6
		}
		opcodes[0x0B|p<<4] = func(c *CPU) int {
			c.setPair(p, c.getPair(p)-1)
			return 6
		}
		opcodes[0x09|p<<4] = func(c *CPU) int {
			c.addHL(c.getPair(p))
			return 11
		}
		opcodes[0xC1|p<<4] = func(c *CPU) int {
			c.setPair2(p, c.pop())
			return 10
		}
		opcodes[0xC5|p<<4] = func(c *CPU) int {
			c.push(c.getPair2(p))
			return 11
		}
	}

	// JR cc,d
	for cc := uint8(0); cc < 4; cc++ {
		cc := cc
		opcodes[0x20|cc<<3] = func(c *CPU) int {
			if !ConditionMet(c.f, cc) {
				c.pc++
				return 7
			}
			c.jr()
			return 12
		}
	}

	// RLCA RRCA RLA RRA
	for op := uint8(0); op < 4; op++ {
		op := op
		opcodes[0x07|op<<3] = func(c *CPU) int {
			c.rotateA(op)
			return 4
		}
	}

	opcodes[0x00] = opcode0x00
	opcodes[0x02] = opcode0x02
	opcodes[0x08] = opcode0x08
	opcodes[0x0A] = opcode0x0A
	opcodes[0x10] = opcode0x10
	opcodes[0x12] = opcode0x12
	opcodes[0x18] = opcode0x18
	opcodes[0x1A] = opcode0x1A
	opcodes[0x22] = opcode0x22
	opcodes[0x27] = opcode0x27
	opcodes[0x2A] = opcode0x2A
	opcodes[0x2F] = opcode0x2F
	opcodes[0x32] = opcode0x32
	opcodes[0x37] = opcode0x37
	opcodes[0x3A] = opcode0x3A
	opcodes[0x3F] = opcode0x3F
	opcodes[0xC3] = opcode0xC3
	opcodes[0xC9] = opcode0xC9
	opcodes[0xCD] = opcode0xCD
	opcodes[0xD3] = opcode0xD3
	opcodes[0xD9] = opcode0xD9
	opcodes[0xDB] = opcode0xDB
	opcodes[0xE3] = opcode0xE3
	opcodes[0xE9] = opcode0xE9
	opcodes[0xEB] = opcode0xEB
	opcodes[0xF3] = opcode0xF3
	opcodes[0xF9] = opcode0xF9
	opcodes[0xFB] = opcode0xFB

	// prefixes are consumed by Decode, they only land here when supplied
	// as an interrupt mode 0 data byte
	opcodes[0xCB] = prefixNOP
	opcodes[0xDD] = prefixNOP
	opcodes[0xED] = prefixNOP
	opcodes[0xFD] = prefixNOP
}

// getPair returns BC, DE, HL (or IX/IY) or SP for p = 0..3
func (c *CPU) getPair(p uint8) uint16 {
	switch p & 3 {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		return c.getHLX()
	}
	return c.sp
}

func (c *CPU) setPair(p uint8, value uint16) {
	switch p & 3 {
	case 0:
		c.setBC(value)
	case 1:
		c.setDE(value)
	case 2:
		c.setHLX(value)
	default:
		c.sp = value
	}
}

// getPair2 is getPair with AF in place of SP, as used by PUSH and POP
func (c *CPU) getPair2(p uint8) uint16 {
	if p&3 == 3 {
		return c.getAF()
	}
	return c.getPair(p)
}

func (c *CPU) setPair2(p uint8, value uint16) {
	if p&3 == 3 {
		c.setAF(value)
		return
	}
	c.setPair(p, value)
}

//NOP
//#0x00:
func opcode0x00(_ *CPU) int {
	return 4
}

//LD (BC), A
//#0x02:
func opcode0x02(c *CPU) int {
	c.write(c.getBC(), c.a)
	return 7
}

//EX AF, AF'
//#0x08:
func opcode0x08(c *CPU) int {
	c.exchangeAF()
	return 4
}

//LD A, (BC)
//#0x0A:
func opcode0x0A(c *CPU) int {
	c.a = c.read(c.getBC())
	return 7
}

//DJNZ d
//#0x10:
func opcode0x10(c *CPU) int {
	c.b--
	if c.b == 0 {
		c.pc++
		return 8
	}
	c.jr()
	return 13
}

//LD (DE), A
//#0x12:
func opcode0x12(c *CPU) int {
	c.write(c.getDE(), c.a)
	return 7
}

//JR d
//#0x18:
func opcode0x18(c *CPU) int {
	c.jr()
	return 12
}

//LD A, (DE)
//#0x1A:
func opcode0x1A(c *CPU) int {
	c.a = c.read(c.getDE())
	return 7
}

//LD (nn), HL
//#0x22:
func opcode0x22(c *CPU) int {
	c.writeWord(c.readImmediateWord(), c.getHLX())
	return 16
}

//DAA
//#0x27:
func opcode0x27(c *CPU) int {
	c.daa()
	return 4
}

//LD HL, (nn)
//#0x2A:
func opcode0x2A(c *CPU) int {
	c.setHLX(c.readWord(c.readImmediateWord()))
	return 16
}

//CPL
//#0x2F:
func opcode0x2F(c *CPU) int {
	c.cpl()
	return 4
}

//LD (nn), A
//#0x32:
func opcode0x32(c *CPU) int {
	c.write(c.readImmediateWord(), c.a)
	return 13
}

//INC (HL)
//#0x34:
func opcodeIncMem(c *CPU) int {
	address := c.operandAddress()
	value := c.read(address)
	c.inc(&value)
	c.write(address, value)
	return 11
}

//DEC (HL)
//#0x35:
func opcodeDecMem(c *CPU) int {
	address := c.operandAddress()
	value := c.read(address)
	c.dec(&value)
	c.write(address, value)
	return 11
}

//LD (HL), n
//#0x36:
func opcodeLdMemImmediate(c *CPU) int {
	address := c.operandAddress()
	c.write(address, c.readImmediate())
	if c.index != useHL {
		// n is fetched while the index address is computed
		return 7
	}
	return 10
}

//SCF
//#0x37:
func opcode0x37(c *CPU) int {
	c.scf()
	return 4
}

//LD A, (nn)
//#0x3A:
func opcode0x3A(c *CPU) int {
	c.a = c.read(c.readImmediateWord())
	return 13
}

//CCF
//#0x3F:
func opcode0x3F(c *CPU) int {
	c.ccf()
	return 4
}

//HALT
//#0x76:
func opcode0x76(c *CPU) int {
	c.setState(Halted)
	return 4
}

//JP nn
//#0xC3:
func opcode0xC3(c *CPU) int {
	c.pc = c.readImmediateWord()
	return 10
}

//RET
//#0xC9:
func opcode0xC9(c *CPU) int {
	c.pc = c.pop()
	return 10
}

//CALL nn
//#0xCD:
func opcode0xCD(c *CPU) int {
	nn := c.readImmediateWord()
	c.push(c.pc)
	c.pc = nn
	return 17
}

//OUT (n), A
//#0xD3:
func opcode0xD3(c *CPU) int {
	n := c.readImmediate()
	c.bus.WritePort(bit.Combine(c.a, n), c.a)
	return 11
}

//EXX
//#0xD9:
func opcode0xD9(c *CPU) int {
	c.exchangeAll()
	return 4
}

//IN A, (n)
//#0xDB:
func opcode0xDB(c *CPU) int {
	n := c.readImmediate()
	c.a = c.bus.ReadPort(bit.Combine(c.a, n))
	return 11
}

//EX (SP), HL
//#0xE3:
func opcode0xE3(c *CPU) int {
	low := c.read(c.sp)
	high := c.read(c.sp + 1)
	value := c.getHLX()
	c.write(c.sp+1, bit.High(value))
	c.write(c.sp, bit.Low(value))
	c.setHLX(bit.Combine(high, low))
	return 19
}

//JP (HL)
//#0xE9:
func opcode0xE9(c *CPU) int {
	c.pc = c.getHLX()
	return 4
}

//EX DE, HL
//#0xEB:
func opcode0xEB(c *CPU) int {
	de := c.getDE()
	c.setDE(c.getHL())
	c.setHL(de)
	return 4
}

//DI
//#0xF3:
func opcode0xF3(c *CPU) int {
	c.irq.iff1 = false
	c.irq.iff2 = false
	return 4
}

//LD SP, HL
//#0xF9:
func opcode0xF9(c *CPU) int {
	c.sp = c.getHLX()
	return 6
}

//EI
//#0xFB:
func opcode0xFB(c *CPU) int {
	c.irq.iff1 = true
	c.irq.iff2 = true
	c.irq.deferAcceptance()
	return 4
}
