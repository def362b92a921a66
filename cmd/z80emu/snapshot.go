package main

import (
	"fmt"
	"os"

	"github.com/bradleyjkemp/memviz"
	"github.com/valerio/go-z80emu/z80emu"
	"github.com/valerio/go-z80emu/z80emu/cpu"
)

// saveStateSnapshot saves the registers and the memory window around PC as text
func saveStateSnapshot(m *z80emu.Machine, filename string) error {
	data := m.ExtractDebugData()
	regs := data.CPU

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "# Z80 State Snapshot\n")
	fmt.Fprintf(file, "# T-states: %d, IRQ: %s, NMI pending: %t\n", data.Cycles, data.IRQ, data.NMIPending)
	fmt.Fprintf(file, "#\n")
	fmt.Fprintf(file, "AF=%04X BC=%04X DE=%04X HL=%04X\n", regs.AF(), regs.BC(), regs.DE(), regs.HL())
	fmt.Fprintf(file, "AF'=%02X%02X BC'=%02X%02X DE'=%02X%02X HL'=%02X%02X\n",
		regs.AltA, regs.AltF, regs.AltB, regs.AltC, regs.AltD, regs.AltE, regs.AltH, regs.AltL)
	fmt.Fprintf(file, "IX=%04X IY=%04X SP=%04X PC=%04X\n", regs.IX, regs.IY, regs.SP, regs.PC)
	fmt.Fprintf(file, "I=%02X R=%02X IM=%d IFF1=%t IFF2=%t halted=%t\n", regs.I, regs.R, regs.IM, regs.IFF1, regs.IFF2, regs.Halted)
	fmt.Fprintf(file, "F=%s\n", cpu.FlagString(regs.F))
	fmt.Fprintf(file, "next: % X (%d bytes)\n", data.NextBytes, data.Next.Length)
	for _, a := range data.Next.Accesses {
		fmt.Fprintf(file, "  %s\n", a)
	}
	fmt.Fprintf(file, "#\n")

	mem := data.Memory
	for row := 0; row < len(mem.Bytes); row += 16 {
		end := min(row+16, len(mem.Bytes))
		fmt.Fprintf(file, "%04X: % X\n", mem.StartAddr+uint16(row), mem.Bytes[row:end])
	}

	return nil
}

// dumpMemviz writes the debug data graph in graphviz dot format
func dumpMemviz(m *z80emu.Machine, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	memviz.Map(file, m.ExtractDebugData())
	return nil
}
