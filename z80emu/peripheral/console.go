package peripheral

import (
	"io"
	"log/slog"

	"github.com/valerio/go-z80emu/z80emu/addr"
)

// DefaultConsoleBuffer is the number of pending input bytes a console holds.
const DefaultConsoleBuffer = 256

// Console is a terminal port pair. Reading the data port returns the next
// input byte, writing it sends a byte to the output. The status port reports
// ConsoleReady when input is available; writing ConsoleInterrupt to it
// enables an interrupt while input is pending.
//
// Input arrives through a buffered channel so that the host can feed it
// from another goroutine.
type Console struct {
	data, status uint16
	input        chan byte
	out          io.Writer
	logger       *slog.Logger

	latch    byte
	hasLatch bool

	irqEnabled bool
	vector     byte
}

// NewConsole creates a console on the given ports, writing to out.
func NewConsole(data, status uint16, out io.Writer, vector byte, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		data:   data,
		status: status,
		input:  make(chan byte, DefaultConsoleBuffer),
		out:    out,
		vector: vector,
		logger: logger,
	}
}

// Send queues b as input without blocking. It returns false when the
// buffer is full.
func (c *Console) Send(b byte) bool {
	select {
	case c.input <- b:
		return true
	default:
		return false
	}
}

// SendString queues every byte of s, dropping what does not fit.
func (c *Console) SendString(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if !c.Send(s[i]) {
			c.logger.Warn("console input buffer full", "dropped", len(s)-i)
			break
		}
		n++
	}
	return n
}

// poll moves the next pending byte into the latch
func (c *Console) poll() bool {
	if c.hasLatch {
		return true
	}
	select {
	case b := <-c.input:
		c.latch, c.hasLatch = b, true
	default:
	}
	return c.hasLatch
}

func (c *Console) In(port uint16) byte {
	switch port & 0xFF {
	case c.data & 0xFF:
		if !c.poll() {
			return 0
		}
		c.hasLatch = false
		return c.latch
	case c.status & 0xFF:
		var s byte
		if c.poll() {
			s |= addr.ConsoleReady
		}
		if c.irqEnabled {
			s |= addr.ConsoleInterrupt
		}
		return s
	}
	return 0xFF
}

func (c *Console) Out(port uint16, value byte) {
	switch port & 0xFF {
	case c.data & 0xFF:
		if c.out == nil {
			return
		}
		if _, err := c.out.Write([]byte{value}); err != nil {
			c.logger.Warn("console output failed", "error", err)
		}
	case c.status & 0xFF:
		c.irqEnabled = value&addr.ConsoleInterrupt != 0
	}
}

func (c *Console) Reset() {
	c.irqEnabled = false
	c.hasLatch = false
	for {
		select {
		case <-c.input:
		default:
			return
		}
	}
}

// Requesting, Vector and Acknowledge make the console an interrupt source.
// The request stays up until the handler reads the data port.
func (c *Console) Requesting() bool { return c.irqEnabled && c.poll() }
func (c *Console) Vector() byte     { return c.vector }
func (c *Console) Acknowledge()     {}
