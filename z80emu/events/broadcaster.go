package events

import (
	"errors"
	"log/slog"
)

// ErrQueueFull is returned by Enqueue when the registration queue is full.
var ErrQueueFull = errors.New("events: registration queue full")

// DefaultQueueSize is the capacity of the cross-goroutine registration queue.
const DefaultQueueSize = 64

// CycleListener is called after every CPU step with the T-states the step
// took and the running total.
type CycleListener func(delta int, total uint64)

// HaltListener is called when the CPU enters or leaves the halted state.
type HaltListener func(halted bool)

// ClockRateListener is called when the emulated clock rate changes.
type ClockRateListener func(hz uint64)

// PortStatusListener receives the status byte of a peripheral port group.
type PortStatusListener func(status byte)

// PortGroup identifies the ports of one peripheral, usually by its base port.
type PortGroup uint16

type kind uint8

const (
	cycleKind kind = iota + 1
	haltKind
	clockRateKind
	portStatusKind
)

// Handle identifies a registered listener.
type Handle struct {
	kind  kind
	group PortGroup
	id    uint64
}

// Broadcaster distributes CPU time to the peripherals: every step is
// broadcast to the cycle listeners, halt transitions, clock rate changes and
// port status changes to their own listeners.
//
// Listeners run synchronously, in registration order, on the goroutine that
// steps the CPU. Registration from other goroutines goes through Enqueue and
// is applied by Flush between steps.
type Broadcaster struct {
	cycles    slot[CycleListener]
	halts     slot[HaltListener]
	rates     slot[ClockRateListener]
	portSlots map[PortGroup]*slot[PortStatusListener]

	nextID uint64
	total  uint64
	halted bool
	hz     uint64

	depth int
	queue chan func(*Broadcaster)

	logger *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithQueueSize sets the capacity of the registration queue.
func WithQueueSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.queue = make(chan func(*Broadcaster), n)
		}
	}
}

// WithLogger sets the logger used to report listener panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) { b.logger = logger }
}

// New creates a broadcaster for a clock running at hz.
func New(hz uint64, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		portSlots: make(map[PortGroup]*slot[PortStatusListener]),
		hz:        hz,
		queue:     make(chan func(*Broadcaster), DefaultQueueSize),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broadcaster) newHandle(k kind, group PortGroup) Handle {
	b.nextID++
	return Handle{kind: k, group: group, id: b.nextID}
}

// OnCycles registers fn for every CPU step.
func (b *Broadcaster) OnCycles(fn CycleListener) Handle {
	h := b.newHandle(cycleKind, 0)
	b.cycles.add(h.id, fn)
	return h
}

// OnHalt registers fn for halt transitions.
func (b *Broadcaster) OnHalt(fn HaltListener) Handle {
	h := b.newHandle(haltKind, 0)
	b.halts.add(h.id, fn)
	return h
}

// OnClockRate registers fn for clock rate changes.
func (b *Broadcaster) OnClockRate(fn ClockRateListener) Handle {
	h := b.newHandle(clockRateKind, 0)
	b.rates.add(h.id, fn)
	return h
}

// OnPortStatus registers fn for status changes of group.
func (b *Broadcaster) OnPortStatus(group PortGroup, fn PortStatusListener) Handle {
	h := b.newHandle(portStatusKind, group)
	s, ok := b.portSlots[group]
	if !ok {
		s = &slot[PortStatusListener]{}
		b.portSlots[group] = s
	}
	s.add(h.id, fn)
	return h
}

// Remove unregisters the listener behind h. A listener removed while a
// broadcast is running is not called for the rest of that broadcast.
// It returns false if h was not registered.
func (b *Broadcaster) Remove(h Handle) bool {
	switch h.kind {
	case cycleKind:
		return b.cycles.remove(h.id)
	case haltKind:
		return b.halts.remove(h.id)
	case clockRateKind:
		return b.rates.remove(h.id)
	case portStatusKind:
		if s, ok := b.portSlots[h.group]; ok {
			return s.remove(h.id)
		}
	}
	return false
}

// Advance implements cpu.Clock.
func (b *Broadcaster) Advance(delta int, total uint64) {
	b.total = total
	b.broadcast(func(p *panicked) {
		b.cycles.each(func(fn CycleListener) {
			p.capture(func() { fn(delta, total) })
		})
	})
}

// HaltChanged implements cpu.Clock.
func (b *Broadcaster) HaltChanged(halted bool) {
	b.halted = halted
	b.broadcast(func(p *panicked) {
		b.halts.each(func(fn HaltListener) {
			p.capture(func() { fn(halted) })
		})
	})
}

// SetClockRate changes the emulated clock rate. Listeners only run when
// the rate actually changes.
func (b *Broadcaster) SetClockRate(hz uint64) {
	if hz == b.hz {
		return
	}
	b.hz = hz
	b.broadcast(func(p *panicked) {
		b.rates.each(func(fn ClockRateListener) {
			p.capture(func() { fn(hz) })
		})
	})
}

// PortStatus publishes a new status byte for group.
func (b *Broadcaster) PortStatus(group PortGroup, status byte) {
	s, ok := b.portSlots[group]
	if !ok {
		return
	}
	b.broadcast(func(p *panicked) {
		s.each(func(fn PortStatusListener) {
			p.capture(func() { fn(status) })
		})
	})
}

func (b *Broadcaster) ClockRate() uint64 { return b.hz }
func (b *Broadcaster) Total() uint64     { return b.total }
func (b *Broadcaster) Halted() bool      { return b.halted }

// Enqueue queues a registration from another goroutine. It is applied by
// the next Flush.
func (b *Broadcaster) Enqueue(fn func(*Broadcaster)) error {
	select {
	case b.queue <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Flush applies the queued registrations. It does nothing while a
// broadcast is running.
func (b *Broadcaster) Flush() int {
	if b.depth > 0 {
		return 0
	}

	n := 0
	for {
		select {
		case fn := <-b.queue:
			fn(b)
			n++
		default:
			return n
		}
	}
}

// Pending returns the number of queued registrations.
func (b *Broadcaster) Pending() int {
	return len(b.queue)
}

// broadcast runs deliver and then re-raises the first listener panic, if
// any, once every listener had its turn.
func (b *Broadcaster) broadcast(deliver func(*panicked)) {
	var p panicked
	b.depth++
	deliver(&p)
	b.depth--

	if p.set {
		b.logger.Error("listener panicked", "panic", p.value, "count", p.count)
		panic(p.value)
	}
}

type panicked struct {
	value any
	set   bool
	count int
}

func (p *panicked) capture(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.count++
			if !p.set {
				p.value = r
				p.set = true
			}
		}
	}()
	fn()
}

// Listeners returns the number of registered listeners of every kind.
func (b *Broadcaster) Listeners() int {
	n := b.cycles.len() + b.halts.len() + b.rates.len()
	for _, s := range b.portSlots {
		n += s.len()
	}
	return n
}
