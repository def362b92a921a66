package memory

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/valerio/go-z80emu/z80emu/bit"
)

// ErrOutOfRange is returned when an address range does not fit the 64 KiB
// address space.
var ErrOutOfRange = errors.New("memory: address range out of bounds")

// PageSize is the granularity of ROM and handler mappings.
const PageSize = 0x100

type pageKind uint8

const (
	pageRAM pageKind = iota
	pageROM
	pageHandler
)

// Handler serves the pages it is mapped to, e.g. memory mapped devices.
type Handler interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
}

// Memory is the 64 KiB address space of the CPU, split in 256 byte pages
// that are RAM, ROM or served by a Handler.
type Memory struct {
	memory   []byte
	pageMap  [256]pageKind
	handlers [256]Handler

	logger *slog.Logger
}

// Option configures a Memory.
type Option func(*Memory)

// WithLogger sets the logger used for ROM write reports.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) { m.logger = logger }
}

// New creates an address space made only of zeroed RAM.
func New(opts ...Option) *Memory {
	m := &Memory{
		memory: make([]byte, 0x10000),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// pages returns the page numbers covered by [first, last].
func pages(first, last uint16) (uint8, uint8, error) {
	if first > last {
		return 0, 0, fmt.Errorf("%w: 0x%04X-0x%04X", ErrOutOfRange, first, last)
	}
	return bit.High(first), bit.High(last), nil
}

// MarkROM makes the pages covering [first, last] read only.
func (m *Memory) MarkROM(first, last uint16) error {
	from, to, err := pages(first, last)
	if err != nil {
		return err
	}
	for p := int(from); p <= int(to); p++ {
		m.pageMap[p] = pageROM
		m.handlers[p] = nil
	}
	return nil
}

// MapHandler routes the pages covering [first, last] to h.
func (m *Memory) MapHandler(first, last uint16, h Handler) error {
	if h == nil {
		return errors.New("memory: nil handler")
	}
	from, to, err := pages(first, last)
	if err != nil {
		return err
	}
	for p := int(from); p <= int(to); p++ {
		m.pageMap[p] = pageHandler
		m.handlers[p] = h
	}
	return nil
}

// Load copies data at origin, ROM pages included.
func (m *Memory) Load(origin uint16, data []byte) error {
	if int(origin)+len(data) > len(m.memory) {
		return fmt.Errorf("%w: %d bytes at 0x%04X", ErrOutOfRange, len(data), origin)
	}
	copy(m.memory[origin:], data)
	return nil
}

// IsROM reports whether address lies in a read only page.
func (m *Memory) IsROM(address uint16) bool {
	return m.pageMap[address>>8] == pageROM
}

func (m *Memory) Read(address uint16) byte {
	if m.pageMap[address>>8] == pageHandler {
		return m.handlers[address>>8].Read(address)
	}
	return m.memory[address]
}

func (m *Memory) Write(address uint16, value byte) {
	switch m.pageMap[address>>8] {
	case pageROM:
		m.logger.Debug("write to ROM ignored", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
	case pageHandler:
		m.handlers[address>>8].Write(address, value)
	default:
		m.memory[address] = value
	}
}

func (m *Memory) ReadBit(index uint8, address uint16) bool {
	return bit.Test(index, m.Read(address))
}

// Clear zeroes RAM and ROM contents, mappings are kept.
func (m *Memory) Clear() {
	clear(m.memory)
}
