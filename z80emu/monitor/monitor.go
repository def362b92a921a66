package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/valerio/go-z80emu/z80emu"
	"github.com/valerio/go-z80emu/z80emu/cpu"
	"github.com/valerio/go-z80emu/z80emu/debug"
	"github.com/valerio/go-z80emu/z80emu/timing"
)

const (
	frameTime = time.Second / 30

	registerHeight = 12
	registerWidth  = 30
	memoryRows     = 8
	maxAccessLines = 8
	minTermWidth   = 80
	minTermHeight  = 24
)

// Monitor is a terminal front end that shows the machine state and lets
// the user run, pause and single step it.
type Monitor struct {
	screen  tcell.Screen
	machine *z80emu.Machine

	running   bool
	emulating bool

	logBuffer *LogBuffer
	logLevel  *slog.LevelVar

	handlers map[Action]func()
	logger   *slog.Logger
}

type Option func(*Monitor)

// WithScreen uses screen instead of the terminal, which is useful for
// tests with a tcell simulation screen.
func WithScreen(screen tcell.Screen) Option {
	return func(m *Monitor) { m.screen = screen }
}

// WithLogBuffer shows the entries of buf in the log panel. The level var
// is the one of the handler feeding buf, the +/- keys change it.
func WithLogBuffer(buf *LogBuffer, level *slog.LevelVar) Option {
	return func(m *Monitor) {
		m.logBuffer = buf
		m.logLevel = level
	}
}

// WithLogger sets the logger used for monitor events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// New creates a monitor for machine and takes over the terminal. The
// machine starts paused.
func New(machine *z80emu.Machine, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		machine: machine,
		running: true,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logBuffer == nil {
		m.logBuffer = NewLogBuffer(100)
	}
	if m.logLevel == nil {
		m.logLevel = new(slog.LevelVar)
	}

	if m.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize terminal: %w", err)
		}
		m.screen = screen
	}
	if err := m.screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}

	m.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	m.screen.Clear()

	m.handlers = map[Action]func(){
		ActionStep:             m.step,
		ActionRunToggle:        m.toggleRun,
		ActionNMI:              m.machine.NMI,
		ActionReset:            m.reset,
		ActionLogLevelIncrease: func() { m.changeLogLevel(1) },
		ActionLogLevelDecrease: func() { m.changeLogLevel(-1) },
		ActionQuit:             func() { m.running = false },
	}
	machine.SetDebuggerState(debug.DebuggerPaused)

	return m, nil
}

// Run drives the machine and redraws the screen until the user quits or
// ctx is done. The machine runs on the calling goroutine, one timing slice
// per tick.
func (m *Monitor) Run(ctx context.Context) error {
	defer func() {
		m.logger.Info("Finishing terminal")
		m.screen.Fini()
	}()

	limiter := timing.NewTickerLimiter(timing.SliceDuration)
	defer limiter.Stop()

	slicesPerFrame := int(frameTime / timing.SliceDuration)
	for tick := 0; m.running; tick++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		limiter.WaitForNextSlice()

		m.pollEvents()
		if m.emulating {
			m.runSlice()
		}
		if tick%slicesPerFrame == 0 {
			m.render()
			m.screen.Show()
		}
	}
	return nil
}

// Running reports whether the monitor loop is still active.
func (m *Monitor) Running() bool { return m.running }

// Emulating reports whether the machine is running rather than paused.
func (m *Monitor) Emulating() bool { return m.emulating }

func (m *Monitor) pollEvents() {
	for m.screen.HasPendingEvent() {
		switch ev := m.screen.PollEvent().(type) {
		case *tcell.EventKey:
			m.processKeyEvent(ev)
		case *tcell.EventResize:
			m.screen.Sync()
		}
	}
}

func (m *Monitor) processKeyEvent(ev *tcell.EventKey) {
	act, ok := actionFor(ev)
	if !ok {
		return
	}
	m.logger.Debug("key event", "action", act.String())
	m.handlers[act]()
}

func (m *Monitor) runSlice() {
	_, err := m.machine.RunSlice()
	var bpErr *z80emu.BreakpointError
	if errors.As(err, &bpErr) {
		m.pause()
		return
	}
	if m.machine.Stuck() {
		m.logger.Info("cpu halted with interrupts disabled, paused")
		m.pause()
	}
}

func (m *Monitor) pause() {
	m.emulating = false
	m.machine.SetDebuggerState(debug.DebuggerPaused)
}

func (m *Monitor) toggleRun() {
	if m.emulating {
		m.pause()
		return
	}
	m.emulating = true
	m.machine.SetDebuggerState(debug.DebuggerRunning)
}

func (m *Monitor) step() {
	if m.emulating {
		return
	}
	m.machine.Step()
	m.machine.SetDebuggerState(debug.DebuggerStepInstruction)
}

func (m *Monitor) reset() {
	m.machine.Reset()
	m.pause()
	m.logger.Info("machine reset")
}

func (m *Monitor) changeLogLevel(direction int) {
	oldLevel := m.logLevel.Level()
	switch direction {
	case -1:
		switch oldLevel {
		case slog.LevelDebug:
			m.logLevel.Set(slog.LevelInfo)
		case slog.LevelInfo:
			m.logLevel.Set(slog.LevelWarn)
		case slog.LevelWarn:
			m.logLevel.Set(slog.LevelError)
		}
	case 1:
		switch oldLevel {
		case slog.LevelError:
			m.logLevel.Set(slog.LevelWarn)
		case slog.LevelWarn:
			m.logLevel.Set(slog.LevelInfo)
		case slog.LevelInfo:
			m.logLevel.Set(slog.LevelDebug)
		}
	}
	if oldLevel != m.logLevel.Level() {
		m.logger.Info("Log filter changed", "from", oldLevel, "to", m.logLevel.Level())
	}
}

func (m *Monitor) render() {
	termWidth, termHeight := m.screen.Size()
	m.screen.Clear()
	if termWidth < minTermWidth || termHeight < minTermHeight {
		style := tcell.StyleDefault.Foreground(tcell.ColorRed)
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		m.drawText(0, termHeight/2, termWidth, style, msg)
		return
	}

	data := m.machine.ExtractDebugData()

	m.drawBorders(termWidth, termHeight)
	m.drawRegisters(1, 1, data)
	m.drawNext(registerWidth+2, 1, termWidth-registerWidth-3, data)

	memoryY := registerHeight + 2
	m.drawMemory(1, memoryY, termWidth-2, data)

	logsY := memoryY + memoryRows + 2
	m.drawLogs(1, logsY, termWidth-2, termHeight-1)
}

// drawText writes s at (x, y), clipped to width cells
func (m *Monitor) drawText(x, y, width int, style tcell.Style, s string) {
	i := 0
	for _, ch := range s {
		if i >= width {
			return
		}
		m.screen.SetContent(x+i, y, ch, nil, style)
		i++
	}
}

func (m *Monitor) drawBorders(termWidth, termHeight int) {
	borderStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	for y := 0; y <= registerHeight; y++ {
		m.screen.SetContent(registerWidth+1, y, '│', nil, borderStyle)
	}
	for _, y := range []int{registerHeight + 1, registerHeight + memoryRows + 3} {
		for x := 0; x < termWidth; x++ {
			m.screen.SetContent(x, y, '─', nil, borderStyle)
		}
	}
	m.screen.SetContent(registerWidth+1, registerHeight+1, '┴', nil, borderStyle)

	m.drawText(1, 0, registerWidth, titleStyle, " Z80 Registers ")
	m.drawText(registerWidth+3, 0, termWidth, titleStyle, " Next Instruction ")
	m.drawText(1, registerHeight+1, termWidth, titleStyle, " Memory ")
	title := fmt.Sprintf(" Logs [%s] (-/+ filter) ", m.logLevel.Level())
	m.drawText(1, registerHeight+memoryRows+3, termWidth, titleStyle, title)

	help := " s=step r=run/pause n=NMI x=reset q=quit "
	m.drawText(0, termHeight-1, termWidth, borderStyle, help)
}

func onOff(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func registerLines(data *debug.Data) []string {
	r := data.CPU
	nmi := "-"
	if data.NMIPending {
		nmi = "pending"
	}
	run := cpu.Running
	if r.Halted {
		run = cpu.Halted
	}

	lines := []string{
		fmt.Sprintf("Status: %s %s", data.DebuggerState, run),
		fmt.Sprintf("AF %04X   AF' %02X%02X", r.AF(), r.AltA, r.AltF),
		fmt.Sprintf("BC %04X   BC' %02X%02X", r.BC(), r.AltB, r.AltC),
		fmt.Sprintf("DE %04X   DE' %02X%02X", r.DE(), r.AltD, r.AltE),
		fmt.Sprintf("HL %04X   HL' %02X%02X", r.HL(), r.AltH, r.AltL),
		fmt.Sprintf("IX %04X   IY  %04X", r.IX, r.IY),
		fmt.Sprintf("SP %04X   PC  %04X", r.SP, r.PC),
		fmt.Sprintf("I %02X  R %02X  IM %d", r.I, r.R, r.IM),
		fmt.Sprintf("IFF1 %s IFF2 %s IRQ %s", onOff(r.IFF1), onOff(r.IFF2), data.IRQ),
		fmt.Sprintf("NMI %s  Flags %s", nmi, cpu.FlagString(r.F)),
		fmt.Sprintf("T-states %d", data.Cycles),
	}
	if data.Break != nil {
		lines = append(lines, fmt.Sprintf("Break %s", data.Break))
	}
	return lines
}

func (m *Monitor) drawRegisters(x, y int, data *debug.Data) {
	style := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	for i, line := range registerLines(data) {
		if i >= registerHeight {
			break
		}
		m.drawText(x, y+i, registerWidth, style, line)
	}
}

func nextLines(data *debug.Data) []string {
	hex := make([]string, len(data.NextBytes))
	for i, b := range data.NextBytes {
		hex[i] = fmt.Sprintf("%02X", b)
	}
	lines := []string{
		fmt.Sprintf("%04X: %s", data.CPU.PC, strings.Join(hex, " ")),
		fmt.Sprintf("Length %d", data.Next.Length),
	}
	if len(data.Next.Accesses) == 0 {
		return append(lines, "No data accesses")
	}
	lines = append(lines, "Accesses:")
	for i, a := range data.Next.Accesses {
		if i == maxAccessLines {
			lines = append(lines, fmt.Sprintf("  ... %d more", len(data.Next.Accesses)-i))
			break
		}
		lines = append(lines, "  "+a.String())
	}
	return lines
}

func (m *Monitor) drawNext(x, y, width int, data *debug.Data) {
	style := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	for i, line := range nextLines(data) {
		if i >= registerHeight {
			break
		}
		m.drawText(x, y+i, width, style, line)
	}
}

func (m *Monitor) drawMemory(x, y, width int, data *debug.Data) {
	if data.Memory == nil {
		return
	}
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	pcStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)

	snap := data.Memory
	// show the rows around PC
	first := 0
	if pc := int(data.CPU.PC) - int(snap.StartAddr); pc >= 0 && pc < len(snap.Bytes) {
		first = max(0, pc/16-memoryRows/2)
	}

	for row := 0; row < memoryRows; row++ {
		offset := (first + row) * 16
		if offset >= len(snap.Bytes) {
			return
		}
		address := snap.StartAddr + uint16(offset)
		m.drawText(x, y+row, width, style, fmt.Sprintf("%04X:", address))
		for col := 0; col < 16 && offset+col < len(snap.Bytes); col++ {
			s := style
			if address+uint16(col) == data.CPU.PC {
				s = pcStyle
			}
			cx := x + 6 + col*3
			if cx+2 > x+width {
				break
			}
			m.drawText(cx, y+row, 2, s, fmt.Sprintf("%02X", snap.Bytes[offset+col]))
		}
	}
}

func (m *Monitor) drawLogs(x, y, width, bottom int) {
	availableHeight := bottom - y
	if availableHeight <= 0 || width <= 0 {
		return
	}

	for i, entry := range m.logBuffer.Recent(availableHeight) {
		logText := entry.String()
		if len(logText) > width && width > 3 {
			logText = logText[:width-3] + "..."
		}
		m.drawText(x, y+i, width, levelStyle(entry.Level), logText)
	}
}

func levelStyle(level slog.Level) tcell.Style {
	switch {
	case level >= slog.LevelError:
		return tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	case level >= slog.LevelWarn:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case level >= slog.LevelInfo:
		return tcell.StyleDefault.Foreground(tcell.ColorBlue)
	}
	return tcell.StyleDefault.Foreground(tcell.ColorGray)
}
