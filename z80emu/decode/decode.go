// Package decode predicts what an instruction will do without running it:
// its length and the memory and port accesses it performs, in the order
// the CPU performs them.
package decode

import (
	"fmt"

	"github.com/valerio/go-z80emu/z80emu/bit"
	"github.com/valerio/go-z80emu/z80emu/cpu"
)

// Kind tells reads from writes.
type Kind uint8

const (
	Read Kind = iota
	Write
)

// Space tells memory accesses from port I/O.
type Space uint8

const (
	Memory Space = iota
	Port
)

// Access is a single data access. Opcode and operand fetches are not
// reported.
type Access struct {
	Address uint16
	Kind    Kind
	Space   Space
}

func (a Access) String() string {
	switch {
	case a.Space == Port && a.Kind == Read:
		return fmt.Sprintf("IN  %04X", a.Address)
	case a.Space == Port:
		return fmt.Sprintf("OUT %04X", a.Address)
	case a.Kind == Read:
		return fmt.Sprintf("RD  %04X", a.Address)
	}
	return fmt.Sprintf("WR  %04X", a.Address)
}

// Instruction is the prediction for one instruction.
type Instruction struct {
	Length   int
	Accesses []Access
}

// Has reports whether the instruction performs an access of kind in space
// at address.
func (in Instruction) Has(address uint16, kind Kind, space Space) bool {
	for _, a := range in.Accesses {
		if a.Address == address && a.Kind == kind && a.Space == space {
			return true
		}
	}
	return false
}

type index uint8

const (
	useHL index = iota
	useIX
	useIY
)

type decoder struct {
	code []byte
	regs cpu.Snapshot
	pos  int

	index index
	disp  uint8
	hasD  bool

	accesses []Access
}

// Decode predicts the instruction at the start of code, executed with the
// registers in regs. Conditional instructions are resolved against regs.F,
// block instructions are predicted for a single iteration.
func Decode(code []byte, regs cpu.Snapshot) Instruction {
	d := &decoder{code: code, regs: regs}
	d.decode()
	return Instruction{Length: d.pos, Accesses: d.accesses}
}

// InterruptAccesses predicts the accesses of an interrupt acceptance: the
// return address push, and the vector table read in mode 2. In mode 0 the
// data byte is predicted as the instruction it encodes.
func InterruptAccesses(regs cpu.Snapshot, nmi bool, vector byte) []Access {
	d := &decoder{regs: regs}
	switch {
	case nmi, regs.IM == 1:
		d.push()
	case regs.IM == 2:
		d.push()
		table := bit.Combine(regs.I, vector)
		d.read(table)
		d.read(table + 1)
	case vector&0xC7 == 0xC7:
		d.push()
	default:
		d.code = []byte{vector}
		d.base(d.next())
	}
	return d.accesses
}

func (d *decoder) next() uint8 {
	b := at(d.code, d.pos)
	d.pos++
	return b
}

func (d *decoder) peek() uint8 {
	return at(d.code, d.pos)
}

func (d *decoder) word() uint16 {
	low := d.next()
	high := d.next()
	return bit.Combine(high, low)
}

func (d *decoder) add(address uint16, kind Kind, space Space) {
	d.accesses = append(d.accesses, Access{Address: address, Kind: kind, Space: space})
}

func (d *decoder) read(address uint16)  { d.add(address, Read, Memory) }
func (d *decoder) write(address uint16) { d.add(address, Write, Memory) }
func (d *decoder) in(port uint16)       { d.add(port, Read, Port) }
func (d *decoder) out(port uint16)      { d.add(port, Write, Port) }

func (d *decoder) push() {
	d.write(d.regs.SP - 1)
	d.write(d.regs.SP - 2)
}

func (d *decoder) pop() {
	d.read(d.regs.SP)
	d.read(d.regs.SP + 1)
}

func (d *decoder) hlx() uint16 {
	switch d.index {
	case useIX:
		return d.regs.IX
	case useIY:
		return d.regs.IY
	}
	return d.regs.HL()
}

// operand is the address of (HL), or (IX+d) with the displacement fetched
// on first use.
func (d *decoder) operand() uint16 {
	if d.index == useHL {
		return d.regs.HL()
	}
	if !d.hasD {
		d.disp = d.next()
		d.hasD = true
	}
	return bit.Displace(d.hlx(), d.disp)
}

func (d *decoder) decode() {
	switch op := d.next(); op {
	case 0xCB:
		d.cb(d.next(), d.regs.HL())
	case 0xED:
		d.ed(d.next())
	case 0xDD, 0xFD:
		switch d.peek() {
		case 0xDD, 0xED, 0xFD:
			return
		}
		d.index = useIX
		if op == 0xFD {
			d.index = useIY
		}
		if d.peek() == 0xCB {
			d.pos++
			address := d.operand()
			d.cb(d.next(), address)
			return
		}
		d.base(d.next())
	default:
		d.base(op)
	}
}

func (d *decoder) base(op uint8) {
	x, y, z := op>>6, (op>>3)&7, op&7
	q, p := y&1, y>>1

	switch x {
	case 0:
		switch z {
		case 0:
			if y >= 2 {
				d.next()
			}
		case 1:
			if q == 0 {
				d.word()
			}
		case 2:
			switch y {
			case 0:
				d.write(d.regs.BC())
			case 1:
				d.read(d.regs.BC())
			case 2:
				d.write(d.regs.DE())
			case 3:
				d.read(d.regs.DE())
			case 4:
				nn := d.word()
				d.write(nn)
				d.write(nn + 1)
			case 5:
				nn := d.word()
				d.read(nn)
				d.read(nn + 1)
			case 6:
				d.write(d.word())
			case 7:
				d.read(d.word())
			}
		case 4, 5:
			if y == 6 {
				address := d.operand()
				d.read(address)
				d.write(address)
			}
		case 6:
			if y == 6 {
				address := d.operand()
				d.next()
				d.write(address)
			} else {
				d.next()
			}
		}

	case 1:
		switch {
		case op == 0x76:
		case z == 6:
			d.read(d.operand())
		case y == 6:
			d.write(d.operand())
		}

	case 2:
		if z == 6 {
			d.read(d.operand())
		}

	case 3:
		switch z {
		case 0:
			if cpu.ConditionMet(d.regs.F, y) {
				d.pop()
			}
		case 1:
			if q == 0 || p == 0 {
				d.pop()
			}
		case 2:
			d.word()
		case 3:
			switch y {
			case 0:
				d.word()
			case 2:
				n := d.next()
				d.out(bit.Combine(d.regs.A, n))
			case 3:
				n := d.next()
				d.in(bit.Combine(d.regs.A, n))
			case 4:
				sp := d.regs.SP
				d.read(sp)
				d.read(sp + 1)
				d.write(sp + 1)
				d.write(sp)
			}
		case 4:
			d.word()
			if cpu.ConditionMet(d.regs.F, y) {
				d.push()
			}
		case 5:
			if q == 0 {
				d.push()
			} else if p == 0 {
				d.word()
				d.push()
			}
		case 6:
			d.next()
		case 7:
			d.push()
		}
	}
}

// cb predicts a CB operation, address being (HL) or the indexed operand.
// DD CB always works on memory, plain CB only when z is 6.
func (d *decoder) cb(op uint8, address uint16) {
	if d.index == useHL && op&7 != 6 {
		return
	}
	d.read(address)
	if op>>6 != 1 {
		d.write(address)
	}
}

func (d *decoder) ed(op uint8) {
	x, y, z := op>>6, (op>>3)&7, op&7
	q := y & 1
	bc := d.regs.BC()

	switch {
	case x == 1:
		switch z {
		case 0:
			d.in(bc)
		case 1:
			d.out(bc)
		case 3:
			nn := d.word()
			if q == 0 {
				d.write(nn)
				d.write(nn + 1)
			} else {
				d.read(nn)
				d.read(nn + 1)
			}
		case 5:
			d.pop()
		case 7:
			if y == 4 || y == 5 {
				d.read(d.regs.HL())
				d.write(d.regs.HL())
			}
		}

	case x == 2 && y >= 4 && z <= 3:
		hl := d.regs.HL()
		switch z {
		case 0:
			d.read(hl)
			d.write(d.regs.DE())
		case 1:
			d.read(hl)
		case 2:
			d.in(bc)
			d.write(hl)
		case 3:
			d.read(hl)
			d.out(bit.Combine(d.regs.B-1, d.regs.C))
		}
	}
}
