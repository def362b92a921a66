package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// LogEntry is one captured log record. Message carries the record message
// followed by its key=value attributes.
type LogEntry struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

func (e LogEntry) String() string {
	return fmt.Sprintf("%s %-5s %s", e.Time.Format("15:04:05"), e.Level, e.Message)
}

// LogBuffer keeps the latest log entries in a fixed size ring. Safe for
// concurrent use: the handler may be called from any goroutine.
type LogBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	written int
}

func NewLogBuffer(capacity int) *LogBuffer {
	return &LogBuffer{entries: make([]LogEntry, max(capacity, 1))}
}

func (lb *LogBuffer) Add(e LogEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries[lb.written%len(lb.entries)] = e
	lb.written++
}

// Len returns the number of entries held.
func (lb *LogBuffer) Len() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return min(lb.written, len(lb.entries))
}

// Recent returns up to n of the latest entries, newest first. n <= 0
// returns every entry held.
func (lb *LogBuffer) Recent(n int) []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	held := min(lb.written, len(lb.entries))
	if n <= 0 || n > held {
		n = held
	}
	if n == 0 {
		return nil
	}
	out := make([]LogEntry, n)
	for i := range out {
		out[i] = lb.entries[(lb.written-1-i)%len(lb.entries)]
	}
	return out
}

func (lb *LogBuffer) Reset() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.written = 0
}

// LogBufferHandler is a slog.Handler feeding a LogBuffer, so logs stay
// visible while the monitor owns the terminal.
type LogBufferHandler struct {
	buffer *LogBuffer
	level  slog.Leveler
	attrs  []string // key=value pairs from WithAttrs
	groups []string
}

func NewLogBufferHandler(buffer *LogBuffer, level slog.Leveler) *LogBufferHandler {
	return &LogBufferHandler{buffer: buffer, level: level}
}

func (h *LogBufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogBufferHandler) Handle(_ context.Context, r slog.Record) error {
	parts := append([]string{r.Message}, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		parts = appendAttr(parts, h.groups, a)
		return true
	})
	h.buffer.Add(LogEntry{Time: r.Time, Level: r.Level, Message: strings.Join(parts, " ")})
	return nil
}

func (h *LogBufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.groups, a)
	}
	return &clone
}

func (h *LogBufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clone(h.groups), name)
	return &clone
}

// appendAttr flattens a into key=value form, qualifying the key with the
// open groups.
func appendAttr(parts []string, groups []string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return parts
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			groups = append(slices.Clone(groups), a.Key)
		}
		for _, ga := range a.Value.Group() {
			parts = appendAttr(parts, groups, ga)
		}
		return parts
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(parts, key+"="+a.Value.String())
}
