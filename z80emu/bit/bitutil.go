// Package bit holds the byte and word helpers shared by the CPU, the
// memory and the decode oracle.
package bit

// Combine builds a 16 bit word from its high and low bytes.
func Combine(high, low uint8) uint16 {
	return uint16(high)<<8 | uint16(low)
}

func High(word uint16) uint8 { return uint8(word >> 8) }
func Low(word uint16) uint8  { return uint8(word) }

// Test reports whether bit n of value is 1. Out of range bits read as 0.
func Test(n, value uint8) bool {
	return n < 8 && value&(1<<n) != 0
}

// Set returns value with bit n forced to 1, as the SET instruction does.
func Set(n, value uint8) uint8 {
	return value | 1<<(n&7)
}

// Reset returns value with bit n forced to 0, as the RES instruction does.
func Reset(n, value uint8) uint8 {
	return value &^ (1 << (n & 7))
}

// EvenParity reports whether value has an even number of bits set.
func EvenParity(value uint8) bool {
	value ^= value >> 4
	value ^= value >> 2
	value ^= value >> 1
	return value&1 == 0
}

// Displace applies a signed 8 bit displacement to a 16 bit address,
// wrapping around the address space.
func Displace(address uint16, d uint8) uint16 {
	return address + uint16(int16(int8(d)))
}
