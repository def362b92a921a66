package debug

// MemoryReader provides read-only access to emulator memory for debug tools
// This interface decouples debug tools from the specific memory implementation
type MemoryReader interface {
	// Read reads a single byte from the specified address
	Read(addr uint16) uint8

	// ReadBit reads a specific bit from a memory address
	ReadBit(bit uint8, addr uint16) bool
}

// MaxInstructionLength is the longest Z80 instruction, in bytes.
const MaxInstructionLength = 4

// MemorySnapshot contains a copy of a memory window
type MemorySnapshot struct {
	StartAddr uint16
	Bytes     []uint8
}

// TakeMemorySnapshot copies n bytes starting at start, wrapping around the
// end of the address space.
func TakeMemorySnapshot(reader MemoryReader, start uint16, n int) *MemorySnapshot {
	snap := &MemorySnapshot{StartAddr: start, Bytes: make([]uint8, n)}
	for i := 0; i < n; i++ {
		snap.Bytes[i] = reader.Read(start + uint16(i))
	}
	return snap
}

// FetchInstruction returns the bytes that may make up the instruction at pc.
func FetchInstruction(reader MemoryReader, pc uint16) []byte {
	return TakeMemorySnapshot(reader, pc, MaxInstructionLength).Bytes
}
