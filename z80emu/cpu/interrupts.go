package cpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/valerio/go-z80emu/z80emu/addr"
	"github.com/valerio/go-z80emu/z80emu/bit"
)

var (
	// ErrDuplicatePriority is returned when two sources share a priority.
	ErrDuplicatePriority = errors.New("cpu: duplicate interrupt priority")
	// ErrNilSource is returned when registering a nil interrupt source.
	ErrNilSource = errors.New("cpu: nil interrupt source")
)

// InterruptSource is a device that can request a maskable interrupt.
// The CPU polls Requesting at instruction boundaries; on acceptance it reads
// Vector (the data byte in mode 0, the vector table offset in mode 2) and
// then calls Acknowledge.
type InterruptSource interface {
	Requesting() bool
	// Vector may be read more than once per acceptance and must not have
	// side effects. In mode 0 only single byte opcodes are placed on the
	// bus: the operands of a multi-byte opcode are fetched from memory at PC.
	Vector() byte
	Acknowledge()
}

// DaisyChained sources take part in the IEI/IEO chain: once acknowledged
// they stay in service, blocking themselves and every lower priority
// source, until a RETI is executed.
type DaisyChained interface {
	InterruptSource
	ReturnFromInterrupt()
}

// IRQState is the state of the controller as of the last instruction
// boundary.
type IRQState uint8

const (
	Idle IRQState = iota
	Requested
	Accepted
)

func (s IRQState) String() string {
	switch s {
	case Requested:
		return "REQUESTED"
	case Accepted:
		return "ACCEPTED"
	}
	return "IDLE"
}

type registeredSource struct {
	src       InterruptSource
	chained   DaisyChained
	priority  int
	inService bool
}

// InterruptController holds the interrupt flip-flops and mode, the NMI
// latch and the ordered set of maskable interrupt sources.
type InterruptController struct {
	iff1, iff2 bool
	mode       uint8

	nmi atomic.Bool

	// set by EI (and lone prefixes): no maskable interrupt is accepted at
	// the next boundary
	deferred bool

	sources []*registeredSource
	state   IRQState
	onRETI  []func()

	logger *slog.Logger
}

func newInterruptController(logger *slog.Logger) *InterruptController {
	return &InterruptController{logger: logger}
}

func (ic *InterruptController) reset() {
	ic.iff1, ic.iff2 = false, false
	ic.mode = 0
	ic.nmi.Store(false)
	ic.deferred = false
	ic.state = Idle
	for _, s := range ic.sources {
		s.inService = false
	}
}

// Register adds a maskable interrupt source. Lower priority values are
// served first and sit closer to the CPU in the daisy chain.
func (ic *InterruptController) Register(src InterruptSource, priority int) error {
	if src == nil {
		return ErrNilSource
	}
	for _, s := range ic.sources {
		if s.priority == priority {
			return fmt.Errorf("%w: %d", ErrDuplicatePriority, priority)
		}
	}

	rs := &registeredSource{src: src, priority: priority}
	if chained, ok := src.(DaisyChained); ok {
		rs.chained = chained
	}
	ic.sources = append(ic.sources, rs)
	sort.SliceStable(ic.sources, func(i, j int) bool {
		return ic.sources[i].priority < ic.sources[j].priority
	})

	ic.logger.Debug("interrupt source registered", "priority", priority, "daisy_chain", rs.chained != nil)
	return nil
}

// TriggerNMI latches a non-maskable interrupt. Safe to call from any goroutine.
func (ic *InterruptController) TriggerNMI() {
	ic.nmi.Store(true)
}

// OnRETI registers fn to be called every time RETI executes.
func (ic *InterruptController) OnRETI(fn func()) {
	ic.onRETI = append(ic.onRETI, fn)
}

func (ic *InterruptController) IFF1() bool       { return ic.iff1 }
func (ic *InterruptController) IFF2() bool       { return ic.iff2 }
func (ic *InterruptController) Mode() uint8      { return ic.mode }
func (ic *InterruptController) State() IRQState  { return ic.state }
func (ic *InterruptController) NMIPending() bool { return ic.nmi.Load() }

// Acceptance describes an interrupt the next instruction boundary will
// accept.
type Acceptance struct {
	NMI    bool
	Vector byte // maskable only
}

// Upcoming reports the interrupt the next Step will accept instead of
// executing an instruction, without changing any state.
func (ic *InterruptController) Upcoming() (Acceptance, bool) {
	if ic.nmi.Load() {
		return Acceptance{NMI: true}, true
	}
	if ic.deferred || !ic.iff1 {
		return Acceptance{}, false
	}
	s := ic.pending()
	if s == nil {
		return Acceptance{}, false
	}
	return Acceptance{Vector: s.src.Vector()}, true
}

func (ic *InterruptController) deferAcceptance() {
	ic.deferred = true
}

// pending returns the source that would be accepted now if IFF1 allowed it.
func (ic *InterruptController) pending() *registeredSource {
	for _, s := range ic.sources {
		if s.inService {
			return nil
		}
		if s.src.Requesting() {
			return s
		}
	}
	return nil
}

// service runs at every instruction boundary. When an interrupt is
// accepted it performs the acceptance sequence and returns its cost.
func (ic *InterruptController) service(c *CPU) (int, bool) {
	if ic.nmi.CompareAndSwap(true, false) {
		c.incrementR()
		c.setState(Running)
		c.push(c.pc)
		ic.iff1 = false
		c.pc = addr.NMI
		ic.state = Accepted
		ic.logger.Debug("nmi accepted")
		return 11, true
	}

	if ic.deferred {
		ic.deferred = false
		if ic.pending() != nil {
			ic.state = Requested
		} else {
			ic.state = Idle
		}
		return 0, false
	}

	s := ic.pending()
	if s == nil {
		ic.state = Idle
		return 0, false
	}
	if !ic.iff1 {
		ic.state = Requested
		return 0, false
	}

	ic.iff1, ic.iff2 = false, false
	vector := s.src.Vector()
	s.src.Acknowledge()
	if s.chained != nil {
		s.inService = true
	}
	ic.state = Accepted

	// the acknowledge cycle is an M1 cycle
	c.incrementR()
	c.setState(Running)

	var cycles int
	switch ic.mode {
	case 0:
		if vector&0xC7 == 0xC7 {
			c.push(c.pc)
			c.pc = addr.Restart(vector)
			cycles = 13
		} else {
			cycles = opcodes[vector](c) + 2
		}
	case 1:
		c.push(c.pc)
		c.pc = addr.IM1
		cycles = 13
	default:
		c.push(c.pc)
		c.pc = c.readWord(bit.Combine(c.i, vector))
		cycles = 19
	}

	ic.logger.Debug("interrupt accepted", "mode", ic.mode, "priority", s.priority, "vector", vector, "target", c.pc)
	return cycles, true
}

// returnFromInterrupt implements the IFF side of RETN and RETI. RETI also
// releases the highest priority daisy chain device in service.
func (ic *InterruptController) returnFromInterrupt(reti bool) {
	ic.iff1 = ic.iff2
	if !reti {
		return
	}

	for _, s := range ic.sources {
		if s.inService {
			s.inService = false
			s.chained.ReturnFromInterrupt()
			break
		}
	}
	for _, fn := range ic.onRETI {
		fn()
	}
}
