package monitor

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_Wraps(t *testing.T) {
	lb := NewLogBuffer(3)
	assert.Nil(t, lb.Recent(10))

	for _, msg := range []string{"a", "b", "c", "d"} {
		lb.Add(LogEntry{Message: msg})
	}

	recent := lb.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].Message)
	assert.Equal(t, "b", recent[2].Message)

	assert.Len(t, lb.Recent(2), 2)

	assert.Equal(t, 3, lb.Len())
	lb.Reset()
	assert.Nil(t, lb.Recent(10))
	assert.Zero(t, lb.Len())
}

func TestLogBufferHandler(t *testing.T) {
	testCases := []struct {
		desc   string
		log    func(*slog.Logger)
		expect string
	}{
		{
			desc:   "attributes",
			log:    func(l *slog.Logger) { l.Info("step", "pc", 16, "halted", false) },
			expect: "step pc=16 halted=false",
		},
		{
			desc:   "with attrs",
			log:    func(l *slog.Logger) { l.With("device", "ctc").Info("fired", "channel", 2) },
			expect: "fired device=ctc channel=2",
		},
		{
			desc:   "group attribute",
			log:    func(l *slog.Logger) { l.Info("irq", slog.Group("ctc", "channel", 1, "vector", 0x12)) },
			expect: "irq ctc.channel=1 ctc.vector=18",
		},
		{
			desc:   "with group",
			log:    func(l *slog.Logger) { l.WithGroup("cpu").Info("reset", "pc", 0) },
			expect: "reset cpu.pc=0",
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			lb := NewLogBuffer(4)
			tC.log(slog.New(NewLogBufferHandler(lb, slog.LevelInfo)))

			recent := lb.Recent(1)
			require.Len(t, recent, 1)
			assert.Equal(t, tC.expect, recent[0].Message)
		})
	}
}

func TestLogBufferHandler_Level(t *testing.T) {
	lb := NewLogBuffer(4)
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(NewLogBufferHandler(lb, level))

	logger.Info("dropped")
	assert.Nil(t, lb.Recent(1))

	level.Set(slog.LevelInfo)
	logger.Info("kept")
	assert.Len(t, lb.Recent(4), 1)
}

func TestLogEntry_String(t *testing.T) {
	at := time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC)
	assert.Equal(t, "13:04:05 WARN  careful", LogEntry{Time: at, Level: slog.LevelWarn, Message: "careful"}.String())
	assert.Equal(t, "13:04:05 INFO+2 odd", LogEntry{Time: at, Level: slog.Level(2), Message: "odd"}.String())
}
