package cpu

import "github.com/valerio/go-z80emu/z80emu/bit"

const (
	flagsXY   = uint8(FlagX | FlagY)
	flagsSZPV = uint8(FlagS | FlagZ | FlagPV)
)

// sz53 holds S, Z and the undocumented bits 5 and 3 for every result byte,
// sz53p additionally holds the parity flag.
var sz53, sz53p [256]uint8

func init() {
	for i := 0; i < 256; i++ {
		v := uint8(i)
		sz53[i] = v & (uint8(FlagS) | flagsXY)
		if v == 0 {
			sz53[i] |= uint8(FlagZ)
		}
		sz53p[i] = sz53[i]
		if bit.EvenParity(v) {
			sz53p[i] |= uint8(FlagPV)
		}
	}
}

// add8 adds value and carry to A.
func (c *CPU) add8(value, carry uint8) {
	a := c.a
	result := uint16(a) + uint16(value) + uint16(carry)
	res := uint8(result)

	f := sz53[res] | ((a ^ value ^ res) & uint8(FlagH))
	if result > 0xFF {
		f |= uint8(FlagC)
	}
	if (^(a^value))&(a^res)&0x80 != 0 {
		f |= uint8(FlagPV)
	}

	c.a = res
	c.f = f
}

// subFlags computes A - value - carry and its flags without storing the result.
func (c *CPU) subFlags(value, carry uint8) (uint8, uint8) {
	a := c.a
	result := int(a) - int(value) - int(carry)
	res := uint8(result)

	f := sz53[res] | ((a ^ value ^ res) & uint8(FlagH)) | uint8(FlagN)
	if result < 0 {
		f |= uint8(FlagC)
	}
	if (a^value)&(a^res)&0x80 != 0 {
		f |= uint8(FlagPV)
	}

	return res, f
}

func (c *CPU) sub8(value, carry uint8) {
	c.a, c.f = c.subFlags(value, carry)
}

// cp compares A with value. Bits 3 and 5 are copied from the operand.
func (c *CPU) cp(value uint8) {
	_, f := c.subFlags(value, 0)
	c.f = (f &^ flagsXY) | (value & flagsXY)
}

func (c *CPU) and(value uint8) {
	c.a &= value
	c.f = sz53p[c.a] | uint8(FlagH)
}

func (c *CPU) xor(value uint8) {
	c.a ^= value
	c.f = sz53p[c.a]
}

func (c *CPU) or(value uint8) {
	c.a |= value
	c.f = sz53p[c.a]
}

// alu runs one of the 8 accumulator operations encoded in bits 3-5 of the
// opcode: ADD ADC SUB SBC AND XOR OR CP.
func (c *CPU) alu(op uint8, value uint8) {
	switch op & 7 {
	case 0:
		c.add8(value, 0)
	case 1:
		c.add8(value, c.flagToBit(FlagC))
	case 2:
		c.sub8(value, 0)
	case 3:
		c.sub8(value, c.flagToBit(FlagC))
	case 4:
		c.and(value)
	case 5:
		c.xor(value)
	case 6:
		c.or(value)
	case 7:
		c.cp(value)
	}
}

func (c *CPU) inc(r *uint8) {
	value := *r + 1
	f := (c.f & uint8(FlagC)) | sz53[value]
	if value&0x0F == 0 {
		f |= uint8(FlagH)
	}
	if value == 0x80 {
		f |= uint8(FlagPV)
	}
	*r = value
	c.f = f
}

func (c *CPU) dec(r *uint8) {
	old := *r
	value := old - 1
	f := (c.f & uint8(FlagC)) | sz53[value] | uint8(FlagN)
	if old&0x0F == 0 {
		f |= uint8(FlagH)
	}
	if old == 0x80 {
		f |= uint8(FlagPV)
	}
	*r = value
	c.f = f
}

// addHL adds value to HL (or the active index register).
func (c *CPU) addHL(value uint16) {
	hl := c.getHLX()
	result := uint32(hl) + uint32(value)
	res := uint16(result)

	f := c.f & flagsSZPV
	f |= bit.High(res) & flagsXY
	if (hl^value^res)&0x1000 != 0 {
		f |= uint8(FlagH)
	}
	if result > 0xFFFF {
		f |= uint8(FlagC)
	}

	c.setHLX(res)
	c.f = f
}

func (c *CPU) adcHL(value uint16) {
	hl := c.getHL()
	result := uint32(hl) + uint32(value) + uint32(c.flagToBit(FlagC))
	res := uint16(result)

	f := bit.High(res) & (uint8(FlagS) | flagsXY)
	if res == 0 {
		f |= uint8(FlagZ)
	}
	if (hl^value^res)&0x1000 != 0 {
		f |= uint8(FlagH)
	}
	if (^(hl^value))&(hl^res)&0x8000 != 0 {
		f |= uint8(FlagPV)
	}
	if result > 0xFFFF {
		f |= uint8(FlagC)
	}

	c.setHL(res)
	c.f = f
}

func (c *CPU) sbcHL(value uint16) {
	hl := c.getHL()
	result := int32(hl) - int32(value) - int32(c.flagToBit(FlagC))
	res := uint16(result)

	f := bit.High(res)&(uint8(FlagS)|flagsXY) | uint8(FlagN)
	if res == 0 {
		f |= uint8(FlagZ)
	}
	if (hl^value^res)&0x1000 != 0 {
		f |= uint8(FlagH)
	}
	if (hl^value)&(hl^res)&0x8000 != 0 {
		f |= uint8(FlagPV)
	}
	if result < 0 {
		f |= uint8(FlagC)
	}

	c.setHL(res)
	c.f = f
}

// shift runs one of the 8 CB rotate/shift operations encoded in bits 3-5:
// RLC RRC RL RR SLA SRA SLL SRL. Flags are set from the result.
func (c *CPU) shift(op uint8, r *uint8) {
	value := *r
	var res, carry uint8

	switch op & 7 {
	case 0: // RLC
		carry = value >> 7
		res = value<<1 | carry
	case 1: // RRC
		carry = value & 1
		res = value>>1 | carry<<7
	case 2: // RL
		carry = value >> 7
		res = value<<1 | c.flagToBit(FlagC)
	case 3: // RR
		carry = value & 1
		res = value>>1 | c.flagToBit(FlagC)<<7
	case 4: // SLA
		carry = value >> 7
		res = value << 1
	case 5: // SRA
		carry = value & 1
		res = value>>1 | value&0x80
	case 6: // SLL, undocumented: bit 0 is set
		carry = value >> 7
		res = value<<1 | 1
	case 7: // SRL
		carry = value & 1
		res = value >> 1
	}

	*r = res
	c.f = sz53p[res] | carry
}

// rotateA implements RLCA RRCA RLA RRA, which only touch H, N, C and the
// undocumented bits.
func (c *CPU) rotateA(op uint8) {
	a := c.a
	var carry uint8

	switch op & 3 {
	case 0: // RLCA
		carry = a >> 7
		a = a<<1 | carry
	case 1: // RRCA
		carry = a & 1
		a = a>>1 | carry<<7
	case 2: // RLA
		carry = a >> 7
		a = a<<1 | c.flagToBit(FlagC)
	case 3: // RRA
		carry = a & 1
		a = a>>1 | c.flagToBit(FlagC)<<7
	}

	c.a = a
	c.f = (c.f & flagsSZPV) | (a & flagsXY) | carry
}

// bitTest implements BIT n. xy supplies the undocumented bits 3 and 5: the
// operand for registers, the high byte of the address for memory operands.
func (c *CPU) bitTest(n uint8, value uint8, xy uint8) {
	res := value & (1 << (n & 7))
	f := (c.f & uint8(FlagC)) | uint8(FlagH) | (xy & flagsXY)
	if res == 0 {
		f |= uint8(FlagZ) | uint8(FlagPV)
	}
	f |= res & uint8(FlagS)
	c.f = f
}

func (c *CPU) daa() {
	a := c.a
	carry := c.isSetFlag(FlagC)
	var diff uint8

	if c.isSetFlag(FlagH) || a&0x0F > 9 {
		diff = 0x06
	}
	if carry || a > 0x99 {
		diff |= 0x60
		carry = true
	}

	var res uint8
	var half bool
	if c.isSetFlag(FlagN) {
		res = a - diff
		half = c.isSetFlag(FlagH) && a&0x0F < 6
	} else {
		res = a + diff
		half = a&0x0F > 9
	}

	f := sz53p[res] | (c.f & uint8(FlagN))
	if half {
		f |= uint8(FlagH)
	}
	if carry {
		f |= uint8(FlagC)
	}

	c.a = res
	c.f = f
}

func (c *CPU) cpl() {
	c.a = ^c.a
	c.f = (c.f & (flagsSZPV | uint8(FlagC))) | uint8(FlagH) | uint8(FlagN) | (c.a & flagsXY)
}

func (c *CPU) scf() {
	c.f = (c.f & flagsSZPV) | (c.a & flagsXY) | uint8(FlagC)
}

func (c *CPU) ccf() {
	f := (c.f & flagsSZPV) | (c.a & flagsXY)
	if c.isSetFlag(FlagC) {
		f |= uint8(FlagH)
	} else {
		f |= uint8(FlagC)
	}
	c.f = f
}

func (c *CPU) neg() {
	value := c.a
	c.a = 0
	c.sub8(value, 0)
}

// jr performs a relative jump using the signed displacement at PC
func (c *CPU) jr() {
	d := c.readImmediate()
	c.pc = bit.Displace(c.pc, d)
}
