package debug

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/valerio/go-z80emu/z80emu/cpu"
	"github.com/valerio/go-z80emu/z80emu/decode"
)

// ErrInvalidBreakpoint is returned by Parse for malformed breakpoints.
var ErrInvalidBreakpoint = errors.New("debug: invalid breakpoint")

// Kind selects what a Breakpoint watches.
type Kind uint8

const (
	// AtPC stops before the instruction at Address executes.
	AtPC Kind = iota
	// OnRead stops before an instruction that reads Address.
	OnRead
	// OnWrite stops before an instruction that writes Address.
	OnWrite
	// OnPortIn stops before an IN from a port matching Address under Mask.
	OnPortIn
	// OnPortOut stops before an OUT to a port matching Address under Mask.
	OnPortOut
	// WhenRegister stops when Register holds Value.
	WhenRegister
)

func (k Kind) String() string {
	switch k {
	case AtPC:
		return "pc"
	case OnRead:
		return "r"
	case OnWrite:
		return "w"
	case OnPortIn:
		return "in"
	case OnPortOut:
		return "out"
	case WhenRegister:
		return "reg"
	}
	return "unknown"
}

// Register names a register for WhenRegister breakpoints.
type Register uint8

const (
	RegA Register = iota
	RegF
	RegB
	RegC
	RegD
	RegE
	RegH
	RegL
	RegBC
	RegDE
	RegHL
	RegIX
	RegIY
	RegSP
)

var registerNames = map[string]Register{
	"a": RegA, "f": RegF, "b": RegB, "c": RegC, "d": RegD, "e": RegE, "h": RegH, "l": RegL,
	"bc": RegBC, "de": RegDE, "hl": RegHL, "ix": RegIX, "iy": RegIY, "sp": RegSP,
}

func (r Register) String() string {
	for name, reg := range registerNames {
		if reg == r {
			return strings.ToUpper(name)
		}
	}
	return "?"
}

func (r Register) value(s cpu.Snapshot) uint16 {
	switch r {
	case RegA:
		return uint16(s.A)
	case RegF:
		return uint16(s.F)
	case RegB:
		return uint16(s.B)
	case RegC:
		return uint16(s.C)
	case RegD:
		return uint16(s.D)
	case RegE:
		return uint16(s.E)
	case RegH:
		return uint16(s.H)
	case RegL:
		return uint16(s.L)
	case RegBC:
		return s.BC()
	case RegDE:
		return s.DE()
	case RegHL:
		return s.HL()
	case RegIX:
		return s.IX
	case RegIY:
		return s.IY
	}
	return s.SP
}

// Breakpoint is a condition checked before every instruction. Kind picks
// which of the other fields are meaningful.
type Breakpoint struct {
	Kind     Kind
	Address  uint16
	Mask     uint16
	Register Register
	Value    uint16
}

// Match reports whether the breakpoint fires for the instruction about to
// execute with registers regs, predicted as next.
func (b Breakpoint) Match(regs cpu.Snapshot, next decode.Instruction) bool {
	switch b.Kind {
	case AtPC:
		return regs.PC == b.Address
	case OnRead:
		return next.Has(b.Address, decode.Read, decode.Memory)
	case OnWrite:
		return next.Has(b.Address, decode.Write, decode.Memory)
	case OnPortIn, OnPortOut:
		kind := decode.Read
		if b.Kind == OnPortOut {
			kind = decode.Write
		}
		mask := b.Mask
		if mask == 0 {
			mask = 0xFFFF
		}
		for _, a := range next.Accesses {
			if a.Space == decode.Port && a.Kind == kind && a.Address&mask == b.Address&mask {
				return true
			}
		}
	case WhenRegister:
		return b.Register.value(regs) == b.Value
	}
	return false
}

// needsDecode reports whether Match looks at the predicted accesses.
func (b Breakpoint) needsDecode() bool {
	return b.Kind != AtPC && b.Kind != WhenRegister
}

func (b Breakpoint) String() string {
	switch b.Kind {
	case AtPC:
		return fmt.Sprintf("0x%04X", b.Address)
	case WhenRegister:
		return fmt.Sprintf("%s=0x%X", b.Register, b.Value)
	case OnPortIn, OnPortOut:
		if b.Mask == 0xFF {
			return fmt.Sprintf("%s:0x%02X", b.Kind, b.Address&0xFF)
		}
	}
	return fmt.Sprintf("%s:0x%04X", b.Kind, b.Address)
}

// Parse reads a breakpoint written as ADDR, r:ADDR, w:ADDR, in:PORT,
// out:PORT or REG=VALUE. Numbers take Go prefixes (0x1234, 0b...) and
// default to decimal. Ports below 0x100 only match the low address byte.
func Parse(s string) (Breakpoint, error) {
	s = strings.TrimSpace(strings.ToLower(s))

	if reg, value, ok := strings.Cut(s, "="); ok {
		r, found := registerNames[strings.TrimSpace(reg)]
		if !found {
			return Breakpoint{}, fmt.Errorf("%w: unknown register %q", ErrInvalidBreakpoint, reg)
		}
		v, err := parseNumber(value)
		if err != nil {
			return Breakpoint{}, err
		}
		return Breakpoint{Kind: WhenRegister, Register: r, Value: v}, nil
	}

	kind, address := AtPC, s
	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		address = rest
		switch prefix {
		case "pc":
			kind = AtPC
		case "r":
			kind = OnRead
		case "w":
			kind = OnWrite
		case "in":
			kind = OnPortIn
		case "out":
			kind = OnPortOut
		default:
			return Breakpoint{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidBreakpoint, prefix)
		}
	}

	v, err := parseNumber(address)
	if err != nil {
		return Breakpoint{}, err
	}
	b := Breakpoint{Kind: kind, Address: v}
	if kind == OnPortIn || kind == OnPortOut {
		b.Mask = 0xFFFF
		if v < 0x100 {
			b.Mask = 0xFF
		}
	}
	return b, nil
}

func parseNumber(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidBreakpoint, err)
	}
	return uint16(v), nil
}

// Breakpoints is the set of breakpoints checked by the machine before each
// instruction.
type Breakpoints struct {
	list []Breakpoint
}

func (bs *Breakpoints) Add(b Breakpoint) {
	bs.list = append(bs.list, b)
}

// Remove deletes the i-th breakpoint and reports whether it existed.
func (bs *Breakpoints) Remove(i int) bool {
	if i < 0 || i >= len(bs.list) {
		return false
	}
	bs.list = append(bs.list[:i], bs.list[i+1:]...)
	return true
}

func (bs *Breakpoints) Clear()             { bs.list = nil }
func (bs *Breakpoints) Len() int           { return len(bs.list) }
func (bs *Breakpoints) List() []Breakpoint { return append([]Breakpoint(nil), bs.list...) }

// Check returns the first breakpoint that fires before the next step. The
// step is only predicted if an access breakpoint is set.
func (bs *Breakpoints) Check(regs cpu.Snapshot, reader MemoryReader, irq InterruptQuery) (Breakpoint, bool) {
	var next decode.Instruction
	decoded := false

	for _, b := range bs.list {
		if b.needsDecode() && !decoded {
			next = Predict(regs, reader, irq)
			decoded = true
		}
		if b.Match(regs, next) {
			return b, true
		}
	}
	return Breakpoint{}, false
}
