// Package typing implements the local "am I typing" debounce state machine.
//
// The first input change with a non-empty name emits a start event. Every
// input change re-arms a single stop timer; when that timer expires without
// being re-armed a stop event is emitted and the machine returns to Idle.
//
// Timer expiry is not applied directly from the timer goroutine. The machine
// hands the timer's generation to a wake function, and the owner feeds it
// back through Expire on the goroutine that owns the machine. Expire ignores
// generations that were superseded by a later Input, so a timer that fired
// while a reschedule was in flight can never emit a stale stop.
package typing

import (
	"time"

	"github.com/whisper/chat-client/internal/clock"
	"github.com/whisper/chat-client/internal/metrics"
	"github.com/whisper/chat-client/internal/protocol"
)

// State is the local typing state.
type State int

const (
	Idle State = iota
	Typing
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Typing:
		return "typing"
	default:
		return "unknown"
	}
}

// Config holds typing tuning parameters.
type Config struct {
	Delay time.Duration // silence before a stop event is emitted
}

// DefaultConfig returns the one-second debounce window.
func DefaultConfig() Config {
	return Config{Delay: 1000 * time.Millisecond}
}

// Machine is not safe for concurrent use; all calls must come from the
// goroutine that owns it.
type Machine struct {
	delay time.Duration
	clock clock.Clock
	emit  func(protocol.TypingEvent)
	wake  func(gen uint64)

	state State
	timer clock.Timer
	gen   uint64
}

// New creates an idle Machine. emit receives outbound typing events; wake is
// called from the timer goroutine when a stop timer fires.
func New(config Config, clk clock.Clock, emit func(protocol.TypingEvent), wake func(gen uint64)) *Machine {
	if config.Delay <= 0 {
		config.Delay = DefaultConfig().Delay
	}
	return &Machine{
		delay: config.Delay,
		clock: clk,
		emit:  emit,
		wake:  wake,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Input records an input change by the user called name. An empty name
// bypasses the machine entirely.
func (m *Machine) Input(name string) {
	if name == "" {
		return
	}

	if m.state == Idle {
		m.state = Typing
		metrics.TypingTransitionsTotal.WithLabelValues(Typing.String()).Inc()
		m.emit(protocol.TypingEvent{Username: name, IsStarting: true})
	}

	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.timer = m.clock.AfterFunc(m.delay, func() { m.wake(gen) })
}

// Expire applies the stop timer identified by gen. name is the user name at
// the time of expiry. It reports whether a stop event was emitted.
func (m *Machine) Expire(gen uint64, name string) bool {
	if m.timer == nil || gen != m.gen {
		return false
	}
	m.timer = nil

	m.state = Idle
	metrics.TypingTransitionsTotal.WithLabelValues(Idle.String()).Inc()
	m.emit(protocol.TypingEvent{Username: name, IsStarting: false})
	return true
}

// Stop cancels any pending stop timer without emitting.
func (m *Machine) Stop() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
