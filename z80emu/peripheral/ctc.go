package peripheral

import (
	"log/slog"
)

// CTC control word bits.
const (
	ctcControl      = 1 << 0
	ctcReset        = 1 << 1
	ctcTimeConstant = 1 << 2
	ctcPrescaler256 = 1 << 5
	ctcCounterMode  = 1 << 6
	ctcInterruptEn  = 1 << 7

	ctcVectorMask = 0xF8
)

// CTC is a Z80 counter/timer circuit: four down counters on consecutive
// ports. In timer mode a channel counts T-states through a 16 or 256
// prescaler; in counter mode it counts Trigger calls. Reaching zero reloads
// the time constant and, if enabled, requests an interrupt.
//
// Each channel is a separate daisy chain source (see Channel); channel 0 has
// the highest priority.
type CTC struct {
	base     uint16
	vector   byte
	channels [4]*CTCChannel
	logger   *slog.Logger
}

// CTCChannel is one channel of a CTC.
type CTCChannel struct {
	ctc   *CTC
	index int

	control      byte
	timeConstant int
	counter      int
	prescale     int
	running      bool
	waitingTC    bool

	pending   bool
	inService bool

	// zero count pulses, for chaining a channel into another one's trigger
	zeroCount func()
}

// NewCTC creates a CTC whose channel 0 is at port base.
func NewCTC(base uint16, logger *slog.Logger) *CTC {
	if logger == nil {
		logger = slog.Default()
	}
	c := &CTC{base: base, logger: logger}
	for i := range c.channels {
		c.channels[i] = &CTCChannel{ctc: c, index: i}
	}
	c.Reset()
	return c
}

// Channel returns channel i (0-3).
func (c *CTC) Channel(i int) *CTCChannel {
	return c.channels[i&3]
}

func (c *CTC) Reset() {
	for _, ch := range c.channels {
		ch.control = ctcReset
		ch.timeConstant = 256
		ch.counter = 256
		ch.prescale = 0
		ch.running = false
		ch.waitingTC = false
		ch.pending = false
		ch.inService = false
	}
}

func (c *CTC) In(port uint16) byte {
	ch := c.channels[(port-c.base)&3]
	return byte(ch.counter)
}

func (c *CTC) Out(port uint16, value byte) {
	ch := c.channels[(port-c.base)&3]

	if ch.waitingTC {
		ch.waitingTC = false
		ch.timeConstant = int(value)
		if ch.timeConstant == 0 {
			ch.timeConstant = 256
		}
		ch.counter = ch.timeConstant
		ch.prescale = 0
		ch.running = true
		c.logger.Debug("ctc channel started", "channel", ch.index, "time_constant", ch.timeConstant, "counter_mode", ch.counterMode())
		return
	}

	if value&ctcControl == 0 {
		// interrupt vector, only meaningful on channel 0
		if ch.index == 0 {
			c.vector = value & ctcVectorMask
		}
		return
	}

	ch.control = value
	if value&ctcInterruptEn == 0 {
		ch.pending = false
	}
	if value&ctcReset != 0 {
		ch.running = false
		ch.pending = false
	}
	if value&ctcTimeConstant != 0 {
		ch.waitingTC = true
	}
}

// Advance is the cycle listener driving the timer mode channels.
func (c *CTC) Advance(delta int, _ uint64) {
	for _, ch := range c.channels {
		if !ch.running || ch.counterMode() {
			continue
		}
		ch.prescale += delta
		period := ch.period()
		for ch.prescale >= period {
			ch.prescale -= period
			ch.count()
		}
	}
}

// Trigger feeds an edge into the CLK/TRG input of channel i. Only counter
// mode channels count it.
func (c *CTC) Trigger(i int) {
	ch := c.channels[i&3]
	if ch.running && ch.counterMode() {
		ch.count()
	}
}

func (ch *CTCChannel) counterMode() bool {
	return ch.control&ctcCounterMode != 0
}

func (ch *CTCChannel) period() int {
	if ch.control&ctcPrescaler256 != 0 {
		return 256
	}
	return 16
}

func (ch *CTCChannel) count() {
	ch.counter--
	if ch.counter > 0 {
		return
	}
	ch.counter = ch.timeConstant
	if ch.control&ctcInterruptEn != 0 {
		ch.pending = true
	}
	if ch.zeroCount != nil {
		ch.zeroCount()
	}
}

// OnZeroCount sets fn to be called every time the channel reaches zero.
func (ch *CTCChannel) OnZeroCount(fn func()) {
	ch.zeroCount = fn
}

// Counter returns the current value of the down counter.
func (ch *CTCChannel) Counter() int { return ch.counter }

// Requesting, Vector, Acknowledge and ReturnFromInterrupt make the channel
// a daisy chained interrupt source.
func (ch *CTCChannel) Requesting() bool { return ch.pending && !ch.inService }
func (ch *CTCChannel) Vector() byte     { return ch.ctc.vector | byte(ch.index<<1) }

func (ch *CTCChannel) Acknowledge() {
	ch.pending = false
	ch.inService = true
}

func (ch *CTCChannel) ReturnFromInterrupt() {
	ch.inService = false
}
