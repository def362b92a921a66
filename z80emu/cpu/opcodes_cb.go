package cpu

import "github.com/valerio/go-z80emu/z80emu/bit"

// buildOpcodesCB fills the CB table: rotates and shifts (x=0), BIT (x=1),
// RES (x=2) and SET (x=3), on a register or on (HL).
func buildOpcodesCB() {
	for op := 0; op < 256; op++ {
		x, y, z := uint8(op>>6), uint8(op>>3)&7, uint8(op)&7

		if z == 6 {
			opcodesCB[op] = cbMemory(x, y)
			continue
		}

		switch x {
		case 0:
			opcodesCB[op] = func(c *CPU) int {
				c.shift(y, c.regPtr(z))
				return 8
			}
		case 1:
			opcodesCB[op] = func(c *CPU) int {
				value := *c.regPtr(z)
				c.bitTest(y, value, value)
				return 8
			}
		case 2:
			opcodesCB[op] = func(c *CPU) int {
				r := c.regPtr(z)
				*r = bit.Reset(y, *r)
				return 8
			}
		case 3:
			opcodesCB[op] = func(c *CPU) int {
				r := c.regPtr(z)
				*r = bit.Set(y, *r)
				return 8
			}
		}
	}
}

func cbMemory(x, y uint8) Opcode {
	if x == 1 {
		return func(c *CPU) int {
			address := c.getHL()
			c.bitTest(y, c.read(address), bit.High(address))
			return 12
		}
	}

	return func(c *CPU) int {
		address := c.getHL()
		value := c.read(address)
		cbModify(c, x, y, &value)
		c.write(address, value)
		return 15
	}
}

// cbModify applies a read-modify-write CB operation (x = 0, 2 or 3).
func cbModify(c *CPU, x, y uint8, value *uint8) {
	switch x {
	case 0:
		c.shift(y, value)
	case 2:
		*value = bit.Reset(y, *value)
	case 3:
		*value = bit.Set(y, *value)
	}
}

// buildOpcodesIndexedCB fills the DD CB / FD CB table. The operand is always
// (IX+d)/(IY+d); for everything but BIT the result is also copied into the
// register encoded in the low 3 bits (undocumented) unless that is 6.
func buildOpcodesIndexedCB() {
	for op := 0; op < 256; op++ {
		x, y, z := uint8(op>>6), uint8(op>>3)&7, uint8(op)&7

		if x == 1 {
			opcodesIndexedCB[op] = func(c *CPU) int {
				address := c.operandAddress()
				c.bitTest(y, c.read(address), bit.High(address))
				return 20
			}
			continue
		}

		opcodesIndexedCB[op] = func(c *CPU) int {
			address := c.operandAddress()
			value := c.read(address)
			cbModify(c, x, y, &value)
			c.write(address, value)
			if z != 6 {
				*c.regPtr(z) = value
			}
			return 23
		}
	}
}
