package z80emu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/valerio/go-z80emu/z80emu/addr"
	"github.com/valerio/go-z80emu/z80emu/bus"
	"github.com/valerio/go-z80emu/z80emu/memory"
	"github.com/valerio/go-z80emu/z80emu/peripheral"
	"github.com/valerio/go-z80emu/z80emu/timing"
)

// ErrInvalidConfig is returned by Validate and New for unusable settings.
var ErrInvalidConfig = errors.New("z80emu: invalid config")

// PortConfig places a built-in peripheral on the port map.
type PortConfig struct {
	Enabled bool
	Base    uint16
	// Priority in the interrupt daisy chain, lower is served first.
	// Ignored by devices that never interrupt.
	Priority int
}

// Config holds the machine settings.
type Config struct {
	// ClockRate is the emulated clock in Hz.
	ClockRate uint64
	// Origin is where Load places the program and where execution starts.
	Origin uint16
	// ROMPages is the number of 256 byte pages from address 0 that are
	// read-only.
	ROMPages int
	// PortWidth is the number of address lines the peripherals decode.
	PortWidth bus.Width

	CTC     PortConfig
	Printer PortConfig
	Console PortConfig
	LogSink PortConfig

	// PrintDelay is how long the printer stays busy after each byte.
	PrintDelay time.Duration
	// ConsoleVector is the data byte the console supplies on interrupt.
	ConsoleVector byte
	// Output receives printer and console output, nil discards it.
	Output io.Writer

	Logger *slog.Logger
}

// DefaultConfig returns a 4MHz machine with every peripheral enabled at
// its default port.
func DefaultConfig() Config {
	return Config{
		ClockRate: timing.DefaultClockRate,
		Origin:    addr.Reset,
		PortWidth: bus.Width8,
		CTC:       PortConfig{Enabled: true, Base: addr.CTCBase, Priority: 0},
		Printer:   PortConfig{Enabled: true, Base: addr.PrinterData},
		Console:   PortConfig{Enabled: true, Base: addr.ConsoleData, Priority: 4},
		LogSink:   PortConfig{Enabled: true, Base: addr.LogSink},

		PrintDelay:    peripheral.DefaultPrintDelay,
		ConsoleVector: 0x20,
	}
}

type portSpan struct {
	name     string
	first    uint16
	last     uint16
	priority []int
}

func (c Config) spans() []portSpan {
	var spans []portSpan
	if c.CTC.Enabled {
		p := c.CTC.Priority
		spans = append(spans, portSpan{"ctc", c.CTC.Base, c.CTC.Base + 3, []int{p, p + 1, p + 2, p + 3}})
	}
	if c.Printer.Enabled {
		spans = append(spans, portSpan{"printer", c.Printer.Base, c.Printer.Base + 1, nil})
	}
	if c.Console.Enabled {
		spans = append(spans, portSpan{"console", c.Console.Base, c.Console.Base + 1, []int{c.Console.Priority}})
	}
	if c.LogSink.Enabled {
		spans = append(spans, portSpan{"log sink", c.LogSink.Base, c.LogSink.Base + 1, nil})
	}
	return spans
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	if c.ClockRate == 0 {
		return fmt.Errorf("%w: clock rate must be positive", ErrInvalidConfig)
	}
	if c.ROMPages < 0 || c.ROMPages > 0x10000/memory.PageSize {
		return fmt.Errorf("%w: %d ROM pages", ErrInvalidConfig, c.ROMPages)
	}
	if c.PortWidth != bus.Width8 && c.PortWidth != bus.Width16 {
		return fmt.Errorf("%w: port width %d", ErrInvalidConfig, c.PortWidth)
	}
	if c.PrintDelay < 0 {
		return fmt.Errorf("%w: negative print delay", ErrInvalidConfig)
	}

	spans := c.spans()
	priorities := map[int]string{}
	for i, s := range spans {
		if s.last < s.first || (c.PortWidth == bus.Width8 && s.last > 0xFF) {
			return fmt.Errorf("%w: %s ports at 0x%X out of range", ErrInvalidConfig, s.name, s.first)
		}
		for _, o := range spans[:i] {
			if s.first <= o.last && o.first <= s.last {
				return fmt.Errorf("%w: %s ports overlap %s", ErrInvalidConfig, s.name, o.name)
			}
		}
		for _, p := range s.priority {
			if other, ok := priorities[p]; ok {
				return fmt.Errorf("%w: %s and %s share interrupt priority %d", ErrInvalidConfig, s.name, other, p)
			}
			priorities[p] = s.name
		}
	}
	return nil
}
