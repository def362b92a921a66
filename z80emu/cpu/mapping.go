package cpu

// Opcode represents a function that executes an opcode, returning the
// T-states it took.
type Opcode func(*CPU) int

var (
	opcodes          [256]Opcode
	opcodesCB        [256]Opcode
	opcodesED        [256]Opcode
	opcodesIndexedCB [256]Opcode
)

func init() {
	buildOpcodes()
	buildOpcodesCB()
	buildOpcodesED()
	buildOpcodesIndexedCB()
}

// Decode fetches the opcode at PC, including any prefix bytes, and returns
// the instruction to run. PC is left on the first operand byte.
//
// currentOpcode is set to the prefixed opcode: 0x00-0xFF, 0xCBxx, 0xEDxx,
// 0xDDxx/0xFDxx, and 0xDDCBxx/0xFDCBxx.
func Decode(c *CPU) Opcode {
	op := c.fetchOpcode()

	switch op {
	case 0xCB:
		op = c.fetchOpcode()
		c.currentOpcode = 0xCB00 | uint32(op)
		return opcodesCB[op]
	case 0xED:
		op = c.fetchOpcode()
		c.currentOpcode = 0xED00 | uint32(op)
		return opcodesED[op]
	case 0xDD, 0xFD:
		return decodeIndexed(c, op)
	}

	c.currentOpcode = uint32(op)
	return opcodes[op]
}

func decodeIndexed(c *CPU, prefix uint8) Opcode {
	// a prefix followed by another prefix has no effect of its own
	switch c.peekImmediate() {
	case 0xDD, 0xED, 0xFD:
		c.currentOpcode = uint32(prefix)
		return prefixNOP
	}

	c.index = useIX
	if prefix == 0xFD {
		c.index = useIY
	}

	op := c.fetchOpcode()
	if op == 0xCB {
		// DD CB d op: the displacement comes before the opcode, which is
		// not fetched as an M1 cycle
		c.disp = c.readImmediate()
		c.dispFetched = true
		op = c.readImmediate()
		c.currentOpcode = uint32(prefix)<<16 | 0xCB00 | uint32(op)
		return opcodesIndexedCB[op]
	}

	c.currentOpcode = uint32(prefix)<<8 | uint32(op)
	return opcodes[op]
}

func prefixNOP(c *CPU) int {
	c.irq.deferAcceptance()
	return 4
}
