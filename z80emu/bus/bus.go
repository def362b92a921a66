package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/valerio/go-z80emu/z80emu/memory"
)

// ErrInvalidPortRange is returned by MapPorts for ranges that cannot be
// decoded with the requested width.
var ErrInvalidPortRange = errors.New("bus: invalid port range")

// Width is the number of address lines a peripheral decodes.
type Width uint8

const (
	// Width8 decodes the low byte of the port address only.
	Width8 Width = 8
	// Width16 decodes the full 16 bit port address.
	Width16 Width = 16
)

// PortRange is an inclusive range of ports.
type PortRange struct {
	First, Last uint16
	Width       Width
}

func (r PortRange) mask() uint16 {
	if r.Width == Width8 {
		return 0x00FF
	}
	return 0xFFFF
}

func (r PortRange) validate() error {
	switch r.Width {
	case Width8:
		if r.Last > 0xFF {
			return fmt.Errorf("%w: 0x%04X-0x%04X does not fit 8 bits", ErrInvalidPortRange, r.First, r.Last)
		}
	case Width16:
	default:
		return fmt.Errorf("%w: width %d", ErrInvalidPortRange, r.Width)
	}
	if r.First > r.Last {
		return fmt.Errorf("%w: 0x%04X-0x%04X", ErrInvalidPortRange, r.First, r.Last)
	}
	return nil
}

// Contains reports whether the range decodes port.
func (r PortRange) Contains(port uint16) bool {
	p := port & r.mask()
	return p >= r.First && p <= r.Last
}

// PortHandler serves IN and OUT on the ports it is mapped to. The port is
// passed as seen on the address bus, all 16 bits.
type PortHandler interface {
	In(port uint16) byte
	Out(port uint16, value byte)
}

type mapping struct {
	PortRange
	handler PortHandler
}

// Bus dispatches CPU memory accesses to Memory and port accesses to the
// mapped peripherals.
type Bus struct {
	mem   *memory.Memory
	ports []mapping

	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for unclaimed port accesses.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// New creates a bus over mem.
func New(mem *memory.Memory, opts ...Option) *Bus {
	b := &Bus{mem: mem, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MapPorts routes the ports in r to h. When ranges overlap the first
// mapping wins.
func (b *Bus) MapPorts(r PortRange, h PortHandler) error {
	if err := r.validate(); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("%w: nil handler", ErrInvalidPortRange)
	}
	b.ports = append(b.ports, mapping{PortRange: r, handler: h})
	if b.debugEnabled() {
		b.logger.Debug("ports mapped", "first", fmt.Sprintf("0x%04X", r.First), "last", fmt.Sprintf("0x%04X", r.Last), "width", r.Width)
	}
	return nil
}

func (b *Bus) lookup(port uint16) PortHandler {
	for _, m := range b.ports {
		if m.Contains(port) {
			return m.handler
		}
	}
	return nil
}

// Memory returns the address space behind the bus.
func (b *Bus) Memory() *memory.Memory { return b.mem }

func (b *Bus) ReadMemory(address uint16) byte {
	return b.mem.Read(address)
}

func (b *Bus) WriteMemory(address uint16, value byte) {
	b.mem.Write(address, value)
}

// ReadPort returns 0xFF for ports nobody claims, like a floating bus.
func (b *Bus) ReadPort(port uint16) byte {
	if h := b.lookup(port); h != nil {
		return h.In(port)
	}
	if b.debugEnabled() {
		b.logger.Debug("read from unmapped port", "port", fmt.Sprintf("0x%04X", port))
	}
	return 0xFF
}

func (b *Bus) WritePort(port uint16, value byte) {
	if h := b.lookup(port); h != nil {
		h.Out(port, value)
		return
	}
	if b.debugEnabled() {
		b.logger.Debug("write to unmapped port", "port", fmt.Sprintf("0x%04X", port), "value", fmt.Sprintf("0x%02X", value))
	}
}

// debugEnabled keeps the per-access formatting off the hot path.
func (b *Bus) debugEnabled() bool {
	return b.logger.Enabled(context.Background(), slog.LevelDebug)
}
