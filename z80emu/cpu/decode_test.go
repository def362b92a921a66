package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name           string
		program        []byte
		expectedOpcode uint32
		expectedPC     uint16
	}{
		{name: "NOP", program: []byte{0x00}, expectedOpcode: 0x00, expectedPC: 1},
		{name: "INC B", program: []byte{0x04}, expectedOpcode: 0x04, expectedPC: 1},
		{name: "CB BIT 0,B", program: []byte{0xCB, 0x40}, expectedOpcode: 0xCB40, expectedPC: 2},
		{name: "ED LDIR", program: []byte{0xED, 0xB0}, expectedOpcode: 0xEDB0, expectedPC: 2},
		{name: "DD LD IX,nn", program: []byte{0xDD, 0x21}, expectedOpcode: 0xDD21, expectedPC: 2},
		{name: "FD INC (IY+d)", program: []byte{0xFD, 0x34}, expectedOpcode: 0xFD34, expectedPC: 2},
		{name: "DD CB RLC (IX+d)", program: []byte{0xDD, 0xCB, 0x05, 0x06}, expectedOpcode: 0xDDCB06, expectedPC: 4},
		{name: "FD CB BIT 7,(IY+d)", program: []byte{0xFD, 0xCB, 0xFF, 0x7E}, expectedOpcode: 0xFDCB7E, expectedPC: 4},
		{name: "DD followed by ED", program: []byte{0xDD, 0xED}, expectedOpcode: 0xDD, expectedPC: 1},
		{name: "FD followed by DD", program: []byte{0xFD, 0xDD}, expectedOpcode: 0xFD, expectedPC: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, _ := newTestCPU(t, tt.program...)

			opcode := Decode(cpu)

			assert.NotNil(t, opcode)
			assert.Equal(t, tt.expectedOpcode, cpu.CurrentOpcode())
			assert.Equal(t, tt.expectedPC, cpu.GetPC())
		})
	}
}

func TestOpcodeTablesAreTotal(t *testing.T) {
	tables := map[string]*[256]Opcode{
		"base":    &opcodes,
		"CB":      &opcodesCB,
		"ED":      &opcodesED,
		"indexed": &opcodesIndexedCB,
	}
	for name, table := range tables {
		for op, fn := range table {
			assert.NotNil(t, fn, "%s opcode 0x%02X", name, op)
		}
	}
}

func TestEveryInstructionExecutes(t *testing.T) {
	prefixes := [][]byte{nil, {0xCB}, {0xED}, {0xDD}, {0xFD}, {0xDD, 0xCB, 0x01}, {0xFD, 0xCB, 0x01}}
	for _, prefix := range prefixes {
		for op := 0; op < 256; op++ {
			program := append(append([]byte{}, prefix...), byte(op), 0x01, 0x02)
			cpu, _ := newTestCPU(t, program...)
			cpu.setHL(0x4000)
			cpu.setIX(0x4000)
			cpu.setIY(0x4000)

			cycles := cpu.Step()
			assert.GreaterOrEqual(t, cycles, 4, "prefix % X opcode 0x%02X", prefix, op)
		}
	}
}
