package decode

// Instruction lengths in bytes, prefixes included. indexedLength covers
// DD/FD followed by a base opcode, displacement included.
var baseLength, edLength, indexedLength [256]int

func init() {
	for i := 0; i < 256; i++ {
		op := uint8(i)
		baseLength[i] = 1 + operandBytes(op)
		edLength[i] = 2
		if op>>6 == 1 && op&7 == 3 {
			edLength[i] = 4
		}
		indexedLength[i] = 1 + baseLength[i]
		if usesMemoryOperand(op) {
			indexedLength[i]++
		}
	}
	baseLength[0xCB] = 2
}

// operandBytes returns the number of immediate bytes of an unprefixed opcode.
func operandBytes(op uint8) int {
	x, y, z := op>>6, (op>>3)&7, op&7
	q, p := y&1, y>>1

	switch x {
	case 0:
		switch {
		case z == 0 && y >= 2:
			return 1
		case z == 1 && q == 0:
			return 2
		case z == 2 && y >= 4:
			return 2
		case z == 6:
			return 1
		}
	case 3:
		switch {
		case z == 2, z == 4:
			return 2
		case z == 3 && y == 0:
			return 2
		case z == 3 && (y == 2 || y == 3):
			return 1
		case z == 5 && q == 1 && p == 0:
			return 2
		case z == 6:
			return 1
		}
	}
	return 0
}

// usesMemoryOperand reports whether op addresses (HL), which becomes
// (IX+d)/(IY+d) under a DD/FD prefix.
func usesMemoryOperand(op uint8) bool {
	x, y, z := op>>6, (op>>3)&7, op&7

	switch x {
	case 0:
		return y == 6 && (z == 4 || z == 5 || z == 6)
	case 1:
		return op != 0x76 && (y == 6 || z == 6)
	case 2:
		return z == 6
	}
	return false
}

// Length returns the length of the instruction at the start of code.
// Missing bytes read as 0.
func Length(code []byte) int {
	op := at(code, 0)
	switch op {
	case 0xED:
		return edLength[at(code, 1)]
	case 0xDD, 0xFD:
		switch next := at(code, 1); next {
		case 0xDD, 0xED, 0xFD:
			return 1
		case 0xCB:
			return 4
		default:
			return indexedLength[next]
		}
	}
	return baseLength[op]
}

func at(code []byte, i int) byte {
	if i < len(code) {
		return code[i]
	}
	return 0
}
