package peripheral

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/valerio/go-z80emu/z80emu/addr"
)

func newSinkLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestLogSink_Lines(t *testing.T) {
	var logs, echo bytes.Buffer
	s := NewLogSink(addr.LogSink, WithSinkLogger(newSinkLogger(&logs)), WithEcho(&echo))

	for _, b := range []byte("hello\nwor") {
		s.Out(addr.LogSink, b)
	}

	assert.Contains(t, logs.String(), "line=hello")
	assert.NotContains(t, logs.String(), "wor")
	assert.Equal(t, "hello\nwor", echo.String())

	s.Flush()
	assert.Contains(t, logs.String(), "line=wor")
}

func TestLogSink_IgnoresOtherPorts(t *testing.T) {
	var echo bytes.Buffer
	s := NewLogSink(addr.LogSink, WithEcho(&echo))

	s.Out(addr.LogSink+2, 'x')
	assert.Empty(t, echo.String())

	// the high byte of the port address is ignored
	s.Out(0xAB00|addr.LogSink, 'y')
	assert.Equal(t, "y", echo.String())
}

func TestLogSink_FixedTiming(t *testing.T) {
	var echo bytes.Buffer
	s := NewLogSink(addr.LogSink, WithFixedTiming(100), WithCompletionInterrupt(0x20), WithEcho(&echo))

	s.Out(addr.LogSink, 'a')
	assert.Equal(t, addr.LogSinkBusy, s.In(addr.LogSinkStatus))
	assert.False(t, s.Requesting())

	// dropped while busy
	s.Out(addr.LogSink, 'b')
	assert.Equal(t, "a", echo.String())

	s.Advance(60, 60)
	assert.Equal(t, addr.LogSinkBusy, s.In(addr.LogSinkStatus))

	s.Advance(40, 100)
	assert.Equal(t, byte(0), s.In(addr.LogSinkStatus))
	assert.True(t, s.Requesting())
	assert.Equal(t, byte(0x20), s.Vector())

	s.Acknowledge()
	assert.False(t, s.Requesting())

	s.Out(addr.LogSink, 'b')
	assert.Equal(t, "ab", echo.String())
}

func TestLogSink_Immediate(t *testing.T) {
	s := NewLogSink(addr.LogSink)

	s.Out(addr.LogSink, 'a')
	assert.Equal(t, byte(0), s.In(addr.LogSinkStatus))
	assert.False(t, s.Requesting())
}
