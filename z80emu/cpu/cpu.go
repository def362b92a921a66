package cpu

import (
	"errors"
	"log/slog"

	"github.com/valerio/go-z80emu/z80emu/bit"
)

// Bus is the memory and I/O space seen by the CPU.
type Bus interface {
	ReadMemory(address uint16) byte
	WriteMemory(address uint16, value byte)
	ReadPort(port uint16) byte
	WritePort(port uint16, value byte)
}

// Clock is told about elapsed T-states after every step, and about
// transitions in and out of the halted state.
type Clock interface {
	Advance(delta int, total uint64)
	HaltChanged(halted bool)
}

// ErrBusNotAttached is returned by New when no bus is given.
var ErrBusNotAttached = errors.New("cpu: bus not attached")

// Flag is one of the bits of the F register.
type Flag uint8

const (
	FlagC  Flag = 0x01
	FlagN  Flag = 0x02
	FlagPV Flag = 0x04
	FlagX  Flag = 0x08 // undocumented, copy of bit 3
	FlagH  Flag = 0x10
	FlagY  Flag = 0x20 // undocumented, copy of bit 5
	FlagZ  Flag = 0x40
	FlagS  Flag = 0x80
)

// RunState tells whether the CPU is executing instructions or halted.
type RunState uint8

const (
	Running RunState = iota
	Halted
)

func (s RunState) String() string {
	if s == Halted {
		return "HALTED"
	}
	return "RUNNING"
}

// indexMode selects what the HL slots of the base table refer to while a
// DD or FD prefixed instruction executes.
type indexMode uint8

const (
	useHL indexMode = iota
	useIX
	useIY
)

// CPU is the main struct holding Z80 state
type CPU struct {
	registerSet
	shadow registerSet

	ixh, ixl uint8
	iyh, iyl uint8
	sp       uint16
	pc       uint16
	i        uint8
	r        uint8

	irq *InterruptController

	// metadata
	state         RunState
	haltReported  bool
	cycles        uint64
	currentOpcode uint32

	// per instruction state of DD/FD prefixed execution
	index       indexMode
	disp        uint8
	dispFetched bool

	bus    Bus
	clock  Clock
	logger *slog.Logger
}

// Option configures optional CPU collaborators.
type Option func(*CPU)

// WithClock sets the clock notified after each step.
func WithClock(clock Clock) Option {
	return func(c *CPU) { c.clock = clock }
}

// WithLogger sets the logger used by the CPU and its interrupt controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CPU) { c.logger = logger }
}

type nopClock struct{}

func (nopClock) Advance(int, uint64) {}
func (nopClock) HaltChanged(bool)    {}

// New returns a CPU in its reset state, attached to bus.
func New(bus Bus, opts ...Option) (*CPU, error) {
	if bus == nil {
		return nil, ErrBusNotAttached
	}

	c := &CPU{
		bus:    bus,
		clock:  nopClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = nopClock{}
	}
	c.irq = newInterruptController(c.logger)
	c.Reset()

	return c, nil
}

// Reset puts the CPU in its power-on state and clears the T-state counter.
func (c *CPU) Reset() {
	c.registerSet = registerSet{a: 0xFF, f: 0xFF}
	c.shadow = registerSet{}
	c.ixh, c.ixl, c.iyh, c.iyl = 0xFF, 0xFF, 0xFF, 0xFF
	c.sp = 0xFFFF
	c.pc = 0x0000
	c.i, c.r = 0, 0
	c.cycles = 0
	c.currentOpcode = 0
	c.index = useHL
	c.dispFetched = false
	c.irq.reset()
	c.setState(Running)
	c.reportHalt()
}

// Step executes a single instruction, or accepts a pending interrupt, and
// reports the elapsed T-states to the clock before returning them.
func (c *CPU) Step() int {
	cycles, accepted := c.irq.service(c)
	if !accepted {
		if c.state == Halted {
			// implicit NOP, PC stays on the instruction after HALT
			c.incrementR()
			cycles = 4
		} else {
			cycles = c.execute()
		}
	}

	c.cycles += uint64(cycles)
	c.clock.Advance(cycles, c.cycles)
	c.reportHalt()

	return cycles
}

func (c *CPU) execute() int {
	instruction := Decode(c)
	cycles := instruction(c)

	// DD/FD cost the prefix fetch, plus the displacement fetch and address
	// computation when (IX+d) was used.
	if prefix := c.currentOpcode >> 8; prefix == 0xDD || prefix == 0xFD {
		cycles += 4
		if c.dispFetched {
			cycles += 8
		}
	}

	c.index = useHL
	c.dispFetched = false

	return cycles
}

func (c *CPU) setState(s RunState) {
	c.state = s
}

// reportHalt notifies the clock of a halt transition once the step that
// caused it is fully accounted for.
func (c *CPU) reportHalt() {
	if halted := c.state == Halted; halted != c.haltReported {
		c.haltReported = halted
		c.clock.HaltChanged(halted)
	}
}

// incrementR bumps the 7 bit refresh counter, bit 7 is left untouched.
func (c *CPU) incrementR() {
	c.r = (c.r & 0x80) | ((c.r + 1) & 0x7F)
}

// fetchOpcode reads an opcode byte at PC as an M1 cycle.
func (c *CPU) fetchOpcode() uint8 {
	op := c.bus.ReadMemory(c.pc)
	c.pc++
	c.incrementR()
	return op
}

// peekImmediate returns the byte at the memory address pointed by the PC
func (c *CPU) peekImmediate() uint8 {
	return c.bus.ReadMemory(c.pc)
}

// readImmediate returns the byte at PC ('n' in mnemonics) and moves past it
func (c *CPU) readImmediate() uint8 {
	n := c.bus.ReadMemory(c.pc)
	c.pc++
	return n
}

// readImmediateWord returns the little endian word at PC ('nn' in mnemonics)
// and moves past it
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

func (c *CPU) read(address uint16) uint8 {
	return c.bus.ReadMemory(address)
}

func (c *CPU) write(address uint16, value uint8) {
	c.bus.WriteMemory(address, value)
}

func (c *CPU) readWord(address uint16) uint16 {
	low := c.read(address)
	high := c.read(address + 1)
	return bit.Combine(high, low)
}

func (c *CPU) writeWord(address uint16, value uint16) {
	c.write(address, bit.Low(value))
	c.write(address+1, bit.High(value))
}

func (c *CPU) push(value uint16) {
	c.sp--
	c.write(c.sp, bit.High(value))
	c.sp--
	c.write(c.sp, bit.Low(value))
}

func (c *CPU) pop() uint16 {
	low := c.read(c.sp)
	c.sp++
	high := c.read(c.sp)
	c.sp++
	return bit.Combine(high, low)
}

// operandAddress is the address of the (HL) operand, or (IX+d)/(IY+d) while
// an index prefix is active. The displacement is fetched once.
func (c *CPU) operandAddress() uint16 {
	if c.index == useHL {
		return c.getHL()
	}
	if !c.dispFetched {
		c.disp = c.readImmediate()
		c.dispFetched = true
	}
	return bit.Displace(c.getHLX(), c.disp)
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &= uint8(flag ^ 0xFF)
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

// flagToBit will return 1 if the passed flag is set, 0 otherwise
func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}

	return 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if !condition {
		c.resetFlag(flag)
		return
	}

	c.setFlag(flag)
}

// ConditionMet evaluates condition code cc (NZ Z NC C PO PE P M) against f.
func ConditionMet(f uint8, cc uint8) bool {
	var set bool
	switch cc >> 1 {
	case 0:
		set = f&uint8(FlagZ) != 0
	case 1:
		set = f&uint8(FlagC) != 0
	case 2:
		set = f&uint8(FlagPV) != 0
	default:
		set = f&uint8(FlagS) != 0
	}
	if cc&1 == 0 {
		return !set
	}
	return set
}

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	c.f = bit.Low(value)
}

func (c *CPU) getAF() uint16 {
	return bit.Combine(c.a, c.f)
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) getBC() uint16 {
	return bit.Combine(c.b, c.c)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) getDE() uint16 {
	return bit.Combine(c.d, c.e)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

func (c *CPU) getHL() uint16 {
	return bit.Combine(c.h, c.l)
}

func (c *CPU) getIX() uint16 {
	return bit.Combine(c.ixh, c.ixl)
}

func (c *CPU) setIX(value uint16) {
	c.ixh = bit.High(value)
	c.ixl = bit.Low(value)
}

func (c *CPU) getIY() uint16 {
	return bit.Combine(c.iyh, c.iyl)
}

func (c *CPU) setIY(value uint16) {
	c.iyh = bit.High(value)
	c.iyl = bit.Low(value)
}

// getHLX returns HL, IX or IY depending on the active prefix.
func (c *CPU) getHLX() uint16 {
	switch c.index {
	case useIX:
		return c.getIX()
	case useIY:
		return c.getIY()
	}
	return c.getHL()
}

func (c *CPU) setHLX(value uint16) {
	switch c.index {
	case useIX:
		c.setIX(value)
	case useIY:
		c.setIY(value)
	default:
		c.setHL(value)
	}
}

// regPtr maps the 3 bit register encoding (B C D E H L - A) to its
// storage. Code 6 is the memory operand and has no register.
func (c *CPU) regPtr(r uint8) *uint8 {
	switch r & 7 {
	case 0:
		return &c.b
	case 1:
		return &c.c
	case 2:
		return &c.d
	case 3:
		return &c.e
	case 4:
		return &c.h
	case 5:
		return &c.l
	case 7:
		return &c.a
	}
	return nil
}

// regPtrX is regPtr with H and L replaced by the halves of IX or IY while
// an index prefix is active (the undocumented IXH/IXL forms).
func (c *CPU) regPtrX(r uint8) *uint8 {
	switch {
	case r == 4 && c.index == useIX:
		return &c.ixh
	case r == 5 && c.index == useIX:
		return &c.ixl
	case r == 4 && c.index == useIY:
		return &c.iyh
	case r == 5 && c.index == useIY:
		return &c.iyl
	}
	return c.regPtr(r)
}

// Interrupts returns the controller owning IFF1, IFF2 and the interrupt mode.
func (c *CPU) Interrupts() *InterruptController { return c.irq }

// Register getters, for debuggers and peripheral handlers
func (c *CPU) GetA() uint8       { return c.a }
func (c *CPU) GetF() uint8       { return c.f }
func (c *CPU) GetB() uint8       { return c.b }
func (c *CPU) GetC() uint8       { return c.c }
func (c *CPU) GetD() uint8       { return c.d }
func (c *CPU) GetE() uint8       { return c.e }
func (c *CPU) GetH() uint8       { return c.h }
func (c *CPU) GetL() uint8       { return c.l }
func (c *CPU) GetI() uint8       { return c.i }
func (c *CPU) GetR() uint8       { return c.r }
func (c *CPU) GetAF() uint16     { return c.getAF() }
func (c *CPU) GetBC() uint16     { return c.getBC() }
func (c *CPU) GetDE() uint16     { return c.getDE() }
func (c *CPU) GetHL() uint16     { return c.getHL() }
func (c *CPU) GetIX() uint16     { return c.getIX() }
func (c *CPU) GetIY() uint16     { return c.getIY() }
func (c *CPU) GetSP() uint16     { return c.sp }
func (c *CPU) GetPC() uint16     { return c.pc }
func (c *CPU) GetCycles() uint64 { return c.cycles }
func (c *CPU) State() RunState   { return c.state }
func (c *CPU) IsHalted() bool    { return c.state == Halted }

// IsFlagSet reports whether flag f is set in the F register.
func (c *CPU) IsFlagSet(f Flag) bool { return c.isSetFlag(f) }

// CurrentOpcode returns the prefixed opcode of the last decoded instruction.
func (c *CPU) CurrentOpcode() uint32 { return c.currentOpcode }

// Register setters
func (c *CPU) SetA(v uint8)   { c.a = v }
func (c *CPU) SetF(v uint8)   { c.f = v }
func (c *CPU) SetBC(v uint16) { c.setBC(v) }
func (c *CPU) SetDE(v uint16) { c.setDE(v) }
func (c *CPU) SetHL(v uint16) { c.setHL(v) }
func (c *CPU) SetIX(v uint16) { c.setIX(v) }
func (c *CPU) SetIY(v uint16) { c.setIY(v) }
func (c *CPU) SetSP(v uint16) { c.sp = v }
func (c *CPU) SetPC(v uint16) { c.pc = v }

// GetFlagString returns a human-readable representation of the flag register
func (c *CPU) GetFlagString() string {
	return FlagString(c.f)
}

// FlagString renders f as SZYHXPNC, with '-' for clear bits.
func FlagString(f uint8) string {
	const names = "SZYHXPNC"
	out := []byte("--------")
	for i := 0; i < 8; i++ {
		if f&(0x80>>i) != 0 {
			out[i] = names[i]
		}
	}
	return string(out)
}
