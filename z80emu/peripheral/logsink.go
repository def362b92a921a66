package peripheral

import (
	"io"
	"log/slog"

	"github.com/valerio/go-z80emu/z80emu/addr"
)

// LogSink implements a dummy output device that just logs outgoing bytes as
// text. Handy for debugging test programs that print through a port.
//
// Ports: base is the data port, base+1 the status port (LogSinkBusy while a
// timed transfer is in flight).
type LogSink struct {
	base      uint16
	busy      bool
	countdown int
	logger    *slog.Logger
	out       io.Writer

	// settings
	immediate    bool
	byteCycles   int
	irqEnabled   bool
	vector       byte
	irqRequested bool

	// line buffer for readable output
	line []byte
}

type LogSinkOption func(*LogSink)

// WithFixedTiming makes each byte take cycles T-states to complete instead
// of completing immediately.
func WithFixedTiming(cycles int) LogSinkOption {
	return func(s *LogSink) {
		s.immediate = false
		s.byteCycles = cycles
	}
}

// WithCompletionInterrupt makes the sink request an interrupt with vector
// every time a byte transfer completes.
func WithCompletionInterrupt(vector byte) LogSinkOption {
	return func(s *LogSink) {
		s.irqEnabled = true
		s.vector = vector
	}
}

// WithEcho copies every byte written to the sink to w.
func WithEcho(w io.Writer) LogSinkOption {
	return func(s *LogSink) { s.out = w }
}

// WithSinkLogger sets the logger lines are written to.
func WithSinkLogger(logger *slog.Logger) LogSinkOption {
	return func(s *LogSink) { s.logger = logger }
}

// NewLogSink creates a new logging output device on ports base and base+1.
func NewLogSink(base uint16, opts ...LogSinkOption) *LogSink {
	s := &LogSink{
		base:      base,
		immediate: true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

func (s *LogSink) Out(port uint16, value byte) {
	if port&0xFF != s.base&0xFF {
		return
	}
	if s.busy {
		s.logger.Debug("log sink busy, byte dropped", "value", value)
		return
	}
	s.transfer(value)
}

func (s *LogSink) In(port uint16) byte {
	if port&0xFF == (s.base+1)&0xFF && s.busy {
		return addr.LogSinkBusy
	}
	return 0
}

// Advance is the cycle listener driving timed transfers.
func (s *LogSink) Advance(delta int, _ uint64) {
	if s.immediate || !s.busy {
		return
	}
	s.countdown -= delta
	if s.countdown <= 0 {
		s.completeTransfer()
		s.countdown = 0
	}
}

func (s *LogSink) Reset() {
	s.busy = false
	s.countdown = 0
	s.irqRequested = false
	s.line = s.line[:0]
}

// Flush logs any partial line.
func (s *LogSink) Flush() {
	if len(s.line) > 0 {
		s.logger.Info("output", "line", string(s.line))
		s.line = s.line[:0]
	}
}

func (s *LogSink) transfer(b byte) {
	if s.out != nil {
		_, _ = s.out.Write([]byte{b})
	}

	// buffer until newline for readability
	if b == 0 || b == '\n' || b == '\r' {
		s.Flush()
	} else {
		s.line = append(s.line, b)
	}

	if s.immediate {
		s.completeTransfer()
		return
	}
	s.busy = true
	s.countdown = s.byteCycles
}

func (s *LogSink) completeTransfer() {
	s.busy = false
	if s.irqEnabled {
		s.irqRequested = true
	}
}

// Requesting, Vector and Acknowledge make the sink an interrupt source.
func (s *LogSink) Requesting() bool { return s.irqRequested }
func (s *LogSink) Vector() byte     { return s.vector }
func (s *LogSink) Acknowledge()     { s.irqRequested = false }
