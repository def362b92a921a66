package z80emu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/valerio/go-z80emu/z80emu/bus"
	"github.com/valerio/go-z80emu/z80emu/cpu"
	"github.com/valerio/go-z80emu/z80emu/debug"
	"github.com/valerio/go-z80emu/z80emu/decode"
	"github.com/valerio/go-z80emu/z80emu/events"
	"github.com/valerio/go-z80emu/z80emu/memory"
	"github.com/valerio/go-z80emu/z80emu/peripheral"
	"github.com/valerio/go-z80emu/z80emu/timing"
)

var (
	// ErrBreakpoint is matched by the error returned when execution stops
	// on a breakpoint.
	ErrBreakpoint = errors.New("z80emu: breakpoint hit")
	// ErrProgramTooLarge is returned by Load when the program does not fit
	// between the origin and the end of memory.
	ErrProgramTooLarge = errors.New("z80emu: program too large")
)

// BreakpointError reports the breakpoint that stopped execution.
type BreakpointError struct {
	Breakpoint debug.Breakpoint
	PC         uint16
}

func (e *BreakpointError) Error() string {
	return fmt.Sprintf("breakpoint %s at 0x%04X", e.Breakpoint, e.PC)
}

func (e *BreakpointError) Is(target error) bool { return target == ErrBreakpoint }

// Machine wires the CPU to memory, the port bus and the built-in
// peripherals, and drives them one instruction at a time.
type Machine struct {
	cfg Config

	cpu    *cpu.CPU
	mem    *memory.Memory
	bus    *bus.Bus
	events *events.Broadcaster

	ctc     *peripheral.CTC
	printer *peripheral.Printer
	console *peripheral.Console
	logSink *peripheral.LogSink

	breakpoints debug.Breakpoints
	lastBreak   *debug.Breakpoint
	state       debug.DebuggerState
	limiter     timing.Limiter

	logger *slog.Logger
}

// New builds a machine from cfg.
func New(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := cfg.Output
	if out == nil {
		out = io.Discard
	}

	m := &Machine{
		cfg:     cfg,
		logger:  logger,
		limiter: timing.NewNoOpLimiter(),
	}

	m.mem = memory.New(memory.WithLogger(logger))
	if cfg.ROMPages > 0 {
		if err := m.mem.MarkROM(0, uint16(cfg.ROMPages*memory.PageSize-1)); err != nil {
			return nil, err
		}
	}
	m.bus = bus.New(m.mem, bus.WithLogger(logger))
	m.events = events.New(cfg.ClockRate, events.WithLogger(logger))
	m.events.OnHalt(func(halted bool) {
		logger.Debug("cpu halt state changed", "halted", halted)
	})

	c, err := cpu.New(m.bus, cpu.WithClock(m.events), cpu.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	m.cpu = c
	irq := c.Interrupts()

	if cfg.CTC.Enabled {
		m.ctc = peripheral.NewCTC(cfg.CTC.Base, logger)
		if err := m.mapPorts(cfg.CTC.Base, 4, m.ctc); err != nil {
			return nil, err
		}
		for i := 0; i < 4; i++ {
			if err := irq.Register(m.ctc.Channel(i), cfg.CTC.Priority+i); err != nil {
				return nil, err
			}
		}
		m.events.OnCycles(m.ctc.Advance)
	}

	if cfg.Printer.Enabled {
		m.printer = peripheral.NewPrinter(cfg.Printer.Base, cfg.Printer.Base+1, out, m.events,
			peripheral.WithPrintDelay(cfg.PrintDelay), peripheral.WithPrinterLogger(logger))
		if err := m.mapPorts(cfg.Printer.Base, 2, m.printer); err != nil {
			return nil, err
		}
	}

	if cfg.Console.Enabled {
		m.console = peripheral.NewConsole(cfg.Console.Base, cfg.Console.Base+1, out, cfg.ConsoleVector, logger)
		if err := m.mapPorts(cfg.Console.Base, 2, m.console); err != nil {
			return nil, err
		}
		if err := irq.Register(m.console, cfg.Console.Priority); err != nil {
			return nil, err
		}
	}

	if cfg.LogSink.Enabled {
		m.logSink = peripheral.NewLogSink(cfg.LogSink.Base, peripheral.WithSinkLogger(logger))
		if err := m.mapPorts(cfg.LogSink.Base, 2, m.logSink); err != nil {
			return nil, err
		}
		m.events.OnCycles(m.logSink.Advance)
	}

	m.Reset()

	logger.Info("machine created",
		"clock_hz", cfg.ClockRate,
		"origin", fmt.Sprintf("0x%04X", cfg.Origin),
		"rom_pages", cfg.ROMPages)
	return m, nil
}

func (m *Machine) mapPorts(base uint16, n uint16, h bus.PortHandler) error {
	r := bus.PortRange{First: base, Last: base + n - 1, Width: m.cfg.PortWidth}
	return m.bus.MapPorts(r, h)
}

// Load copies program to the configured origin, ROM pages included.
func (m *Machine) Load(program []byte) error {
	if int(m.cfg.Origin)+len(program) > 0x10000 {
		return fmt.Errorf("%w: %d bytes at 0x%04X", ErrProgramTooLarge, len(program), m.cfg.Origin)
	}
	if err := m.mem.Load(m.cfg.Origin, program); err != nil {
		return err
	}
	m.logger.Info("program loaded", "bytes", len(program), "origin", fmt.Sprintf("0x%04X", m.cfg.Origin))
	return nil
}

// Reset resets the CPU and the peripherals and points PC at the origin.
// Memory is left untouched.
func (m *Machine) Reset() {
	m.cpu.Reset()
	m.cpu.SetPC(m.cfg.Origin)
	if m.ctc != nil {
		m.ctc.Reset()
	}
	if m.printer != nil {
		m.printer.Reset()
	}
	if m.console != nil {
		m.console.Reset()
	}
	if m.logSink != nil {
		m.logSink.Flush()
		m.logSink.Reset()
	}
	m.lastBreak = nil
	m.state = debug.DebuggerRunning
	m.limiter.Reset()
}

// Step applies queued listener registrations and executes one instruction
// (or interrupt acceptance). Breakpoints are not checked.
func (m *Machine) Step() int {
	m.events.Flush()
	return m.cpu.Step()
}

// checkBreakpoints is called before every instruction of Run and RunFor
func (m *Machine) checkBreakpoints() error {
	if m.breakpoints.Len() == 0 {
		return nil
	}
	regs := m.cpu.Snapshot()
	b, hit := m.breakpoints.Check(regs, m.mem, m.cpu.Interrupts())
	if !hit {
		return nil
	}
	m.lastBreak = &b
	m.state = debug.DebuggerPaused
	m.logger.Info("breakpoint hit", "breakpoint", b.String(), "pc", fmt.Sprintf("0x%04X", regs.PC))
	return &BreakpointError{Breakpoint: b, PC: regs.PC}
}

// RunFor executes up to steps instructions and returns the elapsed
// T-states. It stops early on a breakpoint, returning a *BreakpointError,
// or when the CPU is stuck. The first instruction is never checked against
// breakpoints, so that calling RunFor again resumes past the one that
// stopped it.
func (m *Machine) RunFor(steps int) (uint64, error) {
	var elapsed uint64
	for i := 0; i < steps; i++ {
		if m.Stuck() {
			break
		}
		if i > 0 {
			if err := m.checkBreakpoints(); err != nil {
				return elapsed, err
			}
		}
		elapsed += uint64(m.Step())
	}
	return elapsed, nil
}

// RunSlice executes instructions until one timing slice worth of T-states
// at the current clock rate has elapsed. It stops early under the same
// conditions as RunFor.
func (m *Machine) RunSlice() (uint64, error) {
	target := timing.SliceCycles(m.events.ClockRate())
	var elapsed uint64
	for first := true; elapsed < target; first = false {
		if m.Stuck() {
			break
		}
		if !first {
			if err := m.checkBreakpoints(); err != nil {
				return elapsed, err
			}
		}
		elapsed += uint64(m.Step())
	}
	return elapsed, nil
}

// Run executes until ctx is done, a breakpoint is hit or the CPU is stuck,
// pacing execution with the limiter. Cancellation is checked at every
// instruction boundary.
func (m *Machine) Run(ctx context.Context) error {
	m.limiter.Reset()
	m.state = debug.DebuggerRunning
	target := timing.SliceCycles(m.events.ClockRate())

	var sliceElapsed uint64
	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.Stuck() {
			m.logger.Info("cpu halted with interrupts disabled", "pc", fmt.Sprintf("0x%04X", m.cpu.GetPC()))
			return nil
		}
		if !first {
			if err := m.checkBreakpoints(); err != nil {
				return err
			}
		}

		sliceElapsed += uint64(m.Step())
		if sliceElapsed >= target {
			sliceElapsed = 0
			m.limiter.WaitForNextSlice()
			target = timing.SliceCycles(m.events.ClockRate())
		}
	}
}

// SetLimiter sets the limiter pacing Run. Machines start unthrottled.
func (m *Machine) SetLimiter(l timing.Limiter) {
	if l == nil {
		l = timing.NewNoOpLimiter()
	}
	m.limiter = l
}

// SetClockRate changes the emulated clock. Peripherals that convert
// wall clock delays to T-states follow the new rate.
func (m *Machine) SetClockRate(hz uint64) error {
	if hz == 0 {
		return fmt.Errorf("%w: clock rate must be positive", ErrInvalidConfig)
	}
	m.events.SetClockRate(hz)
	m.limiter.Reset()
	return nil
}

// Stuck reports whether the CPU is halted with maskable interrupts
// disabled and no NMI pending: nothing but Reset or an NMI can wake it.
func (m *Machine) Stuck() bool {
	irq := m.cpu.Interrupts()
	return m.cpu.IsHalted() && !irq.IFF1() && !irq.NMIPending()
}

// NMI raises a non-maskable interrupt. Safe to call from any goroutine.
func (m *Machine) NMI() {
	m.cpu.Interrupts().TriggerNMI()
}

// ExtractDebugData returns the state shown by the monitor.
func (m *Machine) ExtractDebugData() *debug.Data {
	regs := m.cpu.Snapshot()
	next := debug.FetchInstruction(m.mem, regs.PC)

	// center the memory window on PC, without wrapping
	start := regs.PC &^ 0x0F
	if start >= 0x40 {
		start -= 0x40
	} else {
		start = 0
	}
	size := min(0x100, 0x10000-int(start))

	return &debug.Data{
		CPU:           regs,
		Cycles:        m.cpu.GetCycles(),
		IRQ:           m.cpu.Interrupts().State(),
		NMIPending:    m.cpu.Interrupts().NMIPending(),
		Next:          debug.Predict(regs, m.mem, m.cpu.Interrupts()),
		NextBytes:     next[:decode.Length(next)],
		Memory:        debug.TakeMemorySnapshot(m.mem, start, size),
		DebuggerState: m.state,
		Break:         m.lastBreak,
	}
}

// SetDebuggerState records the state chosen by the monitor.
func (m *Machine) SetDebuggerState(s debug.DebuggerState) { m.state = s }

func (m *Machine) Config() Config                  { return m.cfg }
func (m *Machine) CPU() *cpu.CPU                   { return m.cpu }
func (m *Machine) Memory() *memory.Memory          { return m.mem }
func (m *Machine) Bus() *bus.Bus                   { return m.bus }
func (m *Machine) Events() *events.Broadcaster     { return m.events }
func (m *Machine) Breakpoints() *debug.Breakpoints { return &m.breakpoints }
func (m *Machine) CTC() *peripheral.CTC            { return m.ctc }
func (m *Machine) Printer() *peripheral.Printer    { return m.printer }
func (m *Machine) Console() *peripheral.Console    { return m.console }
func (m *Machine) LogSink() *peripheral.LogSink    { return m.logSink }
