package peripheral

import (
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/valerio/go-z80emu/z80emu/addr"
	"github.com/valerio/go-z80emu/z80emu/events"
)

// DefaultPrintDelay is how long the printer stays busy after a strobe.
const DefaultPrintDelay = 2 * time.Millisecond

// Printer is a Centronics style output port pair. The program writes a byte
// to the data port and then PrinterStrobe to the status port; the byte is
// printed and the printer reports PrinterBusy until the print delay,
// converted to T-states at the current clock rate, has elapsed or the host
// calls Complete.
type Printer struct {
	data, status uint16
	latch        byte
	out          io.Writer

	delay time.Duration
	hz    atomic.Uint64
	// busy is the remaining T-states, shared with the host goroutine
	busy atomic.Int64

	events *events.Broadcaster
	logger *slog.Logger
}

type PrinterOption func(*Printer)

// WithPrintDelay sets the busy period that follows a strobe.
func WithPrintDelay(d time.Duration) PrinterOption {
	return func(p *Printer) { p.delay = d }
}

// WithPrinterLogger sets the printer logger.
func WithPrinterLogger(logger *slog.Logger) PrinterOption {
	return func(p *Printer) { p.logger = logger }
}

// NewPrinter creates a printer on the given data and status ports, writing
// to out. It listens to the broadcaster for elapsed T-states and clock rate
// changes, and reports its status to the port group of the data port.
func NewPrinter(data, status uint16, out io.Writer, b *events.Broadcaster, opts ...PrinterOption) *Printer {
	p := &Printer{
		data:   data,
		status: status,
		out:    out,
		delay:  DefaultPrintDelay,
		events: b,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.hz.Store(b.ClockRate())
	b.OnClockRate(func(hz uint64) { p.hz.Store(hz) })
	b.OnCycles(p.Advance)

	return p
}

// Group is the port group printer status notifications are sent to.
func (p *Printer) Group() events.PortGroup {
	return events.PortGroup(p.data)
}

func (p *Printer) In(port uint16) byte {
	switch port & 0xFF {
	case p.data & 0xFF:
		return p.latch
	case p.status & 0xFF:
		if p.Busy() {
			return addr.PrinterBusy
		}
	}
	return 0
}

func (p *Printer) Out(port uint16, value byte) {
	switch port & 0xFF {
	case p.data & 0xFF:
		p.latch = value
	case p.status & 0xFF:
		if value&addr.PrinterStrobe == 0 {
			return
		}
		if p.Busy() {
			p.logger.Debug("printer busy, strobe ignored", "value", p.latch)
			return
		}
		p.print()
	}
}

func (p *Printer) print() {
	if p.out != nil {
		if _, err := p.out.Write([]byte{p.latch}); err != nil {
			p.logger.Warn("printer output failed", "error", err)
		}
	}

	cycles := int64(p.hz.Load()) * p.delay.Microseconds() / 1_000_000
	if cycles <= 0 {
		p.events.PortStatus(p.Group(), 0)
		return
	}
	p.busy.Store(cycles)
	p.events.PortStatus(p.Group(), addr.PrinterBusy)
}

// Busy reports whether a print is in progress.
func (p *Printer) Busy() bool {
	return p.busy.Load() > 0
}

// Remaining returns the T-states left before the printer is ready.
func (p *Printer) Remaining() int64 {
	return p.busy.Load()
}

// Advance is the cycle listener counting down the busy period.
func (p *Printer) Advance(delta int, _ uint64) {
	for {
		old := p.busy.Load()
		if old <= 0 {
			return
		}
		next := max(old-int64(delta), 0)
		if p.busy.CompareAndSwap(old, next) {
			if next == 0 {
				p.events.PortStatus(p.Group(), 0)
			}
			return
		}
	}
}

// Complete ends the busy period early. It may be called from any
// goroutine; the status notification is delivered between CPU steps.
func (p *Printer) Complete() {
	if p.busy.Swap(0) <= 0 {
		return
	}
	err := p.events.Enqueue(func(b *events.Broadcaster) {
		b.PortStatus(p.Group(), 0)
	})
	if err != nil {
		p.logger.Warn("printer completion not delivered", "error", err)
	}
}

func (p *Printer) Reset() {
	p.latch = 0
	p.busy.Store(0)
}
