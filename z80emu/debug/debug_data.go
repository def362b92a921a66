package debug

import (
	"github.com/valerio/go-z80emu/z80emu/cpu"
	"github.com/valerio/go-z80emu/z80emu/decode"
)

// DebuggerState represents the current debugger state
type DebuggerState int

const (
	DebuggerRunning DebuggerState = iota
	DebuggerPaused
	DebuggerStepInstruction
)

func (s DebuggerState) String() string {
	switch s {
	case DebuggerPaused:
		return "PAUSED"
	case DebuggerStepInstruction:
		return "STEP"
	}
	return "RUNNING"
}

// Data contains all debug information needed by debug displays
type Data struct {
	CPU           cpu.Snapshot
	Cycles        uint64
	IRQ           cpu.IRQState
	NMIPending    bool
	Next          decode.Instruction
	NextBytes     []byte
	Memory        *MemorySnapshot
	DebuggerState DebuggerState
	// Break is set when execution stopped on a breakpoint
	Break *Breakpoint
}
