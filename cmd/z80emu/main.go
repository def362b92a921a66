package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli"
	"github.com/valerio/go-z80emu/z80emu"
	"github.com/valerio/go-z80emu/z80emu/debug"
	"github.com/valerio/go-z80emu/z80emu/monitor"
	"github.com/valerio/go-z80emu/z80emu/peripheral"
	"github.com/valerio/go-z80emu/z80emu/timing"
)

func main() {
	app := cli.NewApp()
	app.Name = "z80emu"
	app.Description = "A Z80 emulator with a CTC, a printer port and a console"
	app.Usage = "z80emu [options] <program file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "program",
			Usage: "Path to the raw binary to load",
		},
		cli.StringFlag{
			Name:  "org",
			Usage: "Load and start address",
			Value: "0x0000",
		},
		cli.Uint64Flag{
			Name:  "clock",
			Usage: "Emulated clock rate in Hz",
			Value: timing.DefaultClockRate,
		},
		cli.IntFlag{
			Name:  "rom-pages",
			Usage: "Number of read-only 256 byte pages from address 0",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run unthrottled without the monitor",
		},
		cli.IntFlag{
			Name:  "steps",
			Usage: "Number of instructions to run in headless mode (required for headless)",
		},
		cli.BoolFlag{
			Name:  "monitor",
			Usage: "Run inside the terminal monitor",
		},
		cli.BoolFlag{
			Name:  "console",
			Usage: "Feed stdin to the console peripheral",
		},
		cli.StringSliceFlag{
			Name:  "break",
			Usage: "Breakpoint: ADDR, r:ADDR, w:ADDR, in:PORT, out:PORT or REG=VALUE (repeatable)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn or error",
			Value: "info",
		},
		cli.BoolFlag{
			Name:  "statsview",
			Usage: "Serve runtime statistics at " + statsviewAddress + statsviewURL,
		},
		cli.StringFlag{
			Name:  "memviz",
			Usage: "Write a graphviz dump of the final machine state to this file",
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save state snapshots every N steps in headless mode (0 = disabled)",
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory to save state snapshots (default: temp directory)",
		},
	}
	app.Action = runEmulator

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func runEmulator(c *cli.Context) error {
	programPath := c.String("program")
	if programPath == "" {
		if c.NArg() > 0 {
			programPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no program path provided")
		}
	}

	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	if c.Bool("headless") {
		level = slog.LevelDebug
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	var logBuffer *monitor.LogBuffer
	if c.Bool("monitor") {
		// the monitor owns the terminal, logs go to its log panel
		logBuffer = monitor.NewLogBuffer(200)
		slog.SetDefault(slog.New(monitor.NewLogBufferHandler(logBuffer, levelVar)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})))
	}

	cfg, err := configFromFlags(c)
	if err != nil {
		return err
	}

	program, err := os.ReadFile(programPath)
	if err != nil {
		return fmt.Errorf("failed to read program: %w", err)
	}

	m, err := z80emu.New(cfg)
	if err != nil {
		return err
	}
	if err := m.Load(program); err != nil {
		return err
	}
	for _, s := range c.StringSlice("break") {
		b, err := debug.Parse(s)
		if err != nil {
			return err
		}
		m.Breakpoints().Add(b)
	}

	if c.Bool("statsview") {
		launchStatsview(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Bool("console") && !c.Bool("monitor") {
		tty, err := peripheral.OpenTTY(os.Stdin)
		if err != nil {
			return err
		}
		defer func() {
			if err := tty.Restore(); err != nil {
				slog.Warn("Failed to restore terminal", "error", err)
			}
		}()
		go func() {
			if err := tty.Forward(ctx, m.Console()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("Console input stopped", "error", err)
			}
		}()
	}

	switch {
	case c.Bool("headless"):
		err = runHeadless(c, m, programPath)
	case c.Bool("monitor"):
		var mon *monitor.Monitor
		mon, err = monitor.New(m, monitor.WithLogBuffer(logBuffer, levelVar))
		if err != nil {
			return err
		}
		err = mon.Run(ctx)
	default:
		m.SetLimiter(timing.NewAdaptiveLimiter(slog.Default()))
		err = m.Run(ctx)
	}

	if path := c.String("memviz"); path != "" {
		if dumpErr := dumpMemviz(m, path); dumpErr != nil {
			slog.Error("Failed to write memviz dump", "path", path, "error", dumpErr)
		}
	}

	if errors.Is(err, context.Canceled) {
		slog.Info("Interrupted", "pc", fmt.Sprintf("0x%04X", m.CPU().GetPC()))
		return nil
	}
	return err
}

func runHeadless(c *cli.Context, m *z80emu.Machine, programPath string) error {
	steps := c.Int("steps")
	if steps <= 0 {
		return errors.New("headless mode requires --steps option with a positive value")
	}

	snapshotInterval := c.Int("snapshot-interval")
	snapshotDir := c.String("snapshot-dir")
	if snapshotInterval > 0 {
		if snapshotDir == "" {
			tempDir, err := os.MkdirTemp("", "z80emu-snapshots-*")
			if err != nil {
				return fmt.Errorf("failed to create snapshot directory: %v", err)
			}
			snapshotDir = tempDir
		} else if err := os.MkdirAll(snapshotDir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %v", err)
		}
	}

	programName := filepath.Base(programPath)
	programName = strings.TrimSuffix(programName, filepath.Ext(programName))

	slog.Info("Running headless mode", "steps", steps, "snapshot_interval", snapshotInterval, "snapshot_dir", snapshotDir)

	chunk := steps
	if snapshotInterval > 0 {
		chunk = snapshotInterval
	}

	var total uint64
	for done := 0; done < steps; done += chunk {
		n := min(chunk, steps-done)
		elapsed, err := m.RunFor(n)
		total += elapsed
		if err != nil {
			return err
		}

		if snapshotInterval > 0 {
			snapshotPath := filepath.Join(snapshotDir, fmt.Sprintf("%s_step_%d.txt", programName, done+n))
			if err := saveStateSnapshot(m, snapshotPath); err != nil {
				slog.Error("Failed to save snapshot", "step", done+n, "path", snapshotPath, "error", err)
			} else {
				slog.Info("Saved state snapshot", "step", done+n, "path", snapshotPath)
			}
		}
		if m.Stuck() {
			slog.Info("CPU halted with interrupts disabled", "pc", fmt.Sprintf("0x%04X", m.CPU().GetPC()))
			break
		}
	}

	if m.LogSink() != nil {
		m.LogSink().Flush()
	}
	slog.Info("Headless execution completed", "t_states", total, "cycles", m.CPU().GetCycles())
	return nil
}

func configFromFlags(c *cli.Context) (z80emu.Config, error) {
	cfg := z80emu.DefaultConfig()
	cfg.Logger = slog.Default()
	cfg.Output = os.Stdout
	if c.Bool("monitor") {
		// keep device output off the monitor screen
		cfg.Output = io.Discard
	}
	cfg.ClockRate = c.Uint64("clock")
	cfg.ROMPages = c.Int("rom-pages")

	org, err := strconv.ParseUint(c.String("org"), 0, 16)
	if err != nil {
		return cfg, fmt.Errorf("%w: bad --org %q", z80emu.ErrInvalidConfig, c.String("org"))
	}
	cfg.Origin = uint16(org)

	return cfg, cfg.Validate()
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("bad --log-level %q: %w", s, err)
	}
	return level, nil
}
