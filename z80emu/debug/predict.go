package debug

import (
	"github.com/valerio/go-z80emu/z80emu/cpu"
	"github.com/valerio/go-z80emu/z80emu/decode"
)

// InterruptQuery reports the interrupt the next step will accept.
// *cpu.InterruptController implements it.
type InterruptQuery interface {
	Upcoming() (cpu.Acceptance, bool)
}

// Predict returns the accesses of the next step. An interrupt acceptance
// replaces the instruction at PC, and a halted CPU only runs implicit NOPs.
// A nil irq never accepts.
func Predict(regs cpu.Snapshot, reader MemoryReader, irq InterruptQuery) decode.Instruction {
	if irq != nil {
		if a, ok := irq.Upcoming(); ok {
			return decode.Instruction{Accesses: decode.InterruptAccesses(regs, a.NMI, a.Vector)}
		}
	}
	if regs.Halted {
		return decode.Instruction{}
	}
	return decode.Decode(FetchInstruction(reader, regs.PC), regs)
}
