// Package session runs the client side of a chat session. A Session owns the
// name and message fields, the local typing state and the focus flag, and
// mutates them only from its event loop. The connection read loop, the
// terminal reader and the typing timer post events; none of them touch
// session state directly.
package session

import (
	"context"
	"log"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/clock"
	"github.com/whisper/chat-client/internal/notify"
	"github.com/whisper/chat-client/internal/protocol"
	"github.com/whisper/chat-client/internal/typing"
	"github.com/whisper/chat-client/internal/ui"
)

// Sender writes outbound frames. *ws.Conn satisfies it.
type Sender interface {
	Send(msg protocol.Outbound) error
}

// Config holds session settings.
type Config struct {
	Name      string        // initial value of the name field
	QueueSize int           // capacity of the event queue
	Typing    typing.Config // typing debounce settings
	Notify    notify.Config // notification settings

	// AskPermission is consulted once, on the first user interaction, while
	// the notification permission is still default.
	AskPermission func() bool
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		QueueSize: 256,
		Typing:    typing.DefaultConfig(),
		Notify:    notify.DefaultConfig(),
	}
}

type eventKind int

const (
	evFrame eventKind = iota
	evInput
	evFields
	evSubmit
	evFocus
	evTimer
)

type event struct {
	kind    eventKind
	data    []byte
	name    string
	message string
	focused bool
	gen     uint64
}

// Session is one chat client session. There is one per process.
type Session struct {
	ID string

	config     Config
	sender     Sender
	surface    ui.Surface
	clock      clock.Clock
	bridge     *notify.Bridge
	dispatcher *Dispatcher
	typing     *typing.Machine

	events  chan event
	done    chan struct{}
	focused atomic.Bool

	// Owned by the event loop.
	name       string
	message    string
	interacted bool
}

// New creates a Session that sends on sender, renders on surface and shows
// notifications through notifier. notifier may be nil.
func New(config Config, sender Sender, surface ui.Surface, notifier notify.Notifier, clk clock.Clock) *Session {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if clk == nil {
		clk = clock.Real()
	}

	s := &Session{
		ID:      uuid.NewString(),
		config:  config,
		sender:  sender,
		surface: surface,
		clock:   clk,
		events:  make(chan event, config.QueueSize),
		done:    make(chan struct{}),
		name:    strings.TrimSpace(config.Name),
	}
	s.focused.Store(true)

	if config.Notify.SessionID == "" {
		config.Notify.SessionID = s.ID
	}
	s.bridge = notify.NewBridge(config.Notify, notifier, s)
	s.dispatcher = NewDispatcher(surface, s.bridge, s.Focused)
	s.typing = typing.New(config.Typing, clk, s.sendTyping, s.wake)
	return s
}

// Focused reports whether the chat window has focus. It implements
// notify.FocusReader.
func (s *Session) Focused() bool {
	return s.focused.Load()
}

// Permission returns the current notification permission.
func (s *Session) Permission() notify.Permission {
	return s.bridge.Permission()
}

// Frame posts a raw frame received from the server.
func (s *Session) Frame(data []byte) {
	s.post(event{kind: evFrame, data: data})
}

// Input posts an edit of the message field together with the current field
// values. It may start the typing indicator.
func (s *Session) Input(name, message string) {
	s.post(event{kind: evInput, name: name, message: message})
}

// SetFields replaces the field values without counting as typing.
func (s *Session) SetFields(name, message string) {
	s.post(event{kind: evFields, name: name, message: message})
}

// Submit posts a send request together with the field values at the moment
// the user asked to send. Those values are validated and sent, never an
// older copy held by the loop.
func (s *Session) Submit(name, message string) {
	s.post(event{kind: evSubmit, name: name, message: message})
}

// Focus posts a window focus change.
func (s *Session) Focus(focused bool) {
	s.post(event{kind: evFocus, focused: focused})
}

// wake is called from the typing timer goroutine.
func (s *Session) wake(gen uint64) {
	s.post(event{kind: evTimer, gen: gen})
}

func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run processes events until ctx is cancelled. Events posted after Run
// returns are discarded.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.typing.Stop()

	s.updateButton()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evFrame:
		s.dispatcher.Dispatch(ctx, ev.data)

	case evInput:
		s.interact()
		s.setFields(ev.name, ev.message)
		// An empty name bypasses the typing machine.
		s.typing.Input(s.name)
		s.updateButton()

	case evFields:
		s.setFields(ev.name, ev.message)
		s.updateButton()

	case evSubmit:
		s.interact()
		s.setFields(ev.name, ev.message)
		s.updateButton()
		s.submit()

	case evFocus:
		s.focused.Store(ev.focused)

	case evTimer:
		s.typing.Expire(ev.gen, s.name)
	}
}

func (s *Session) setFields(name, message string) {
	s.name = strings.TrimSpace(name)
	s.message = strings.TrimSpace(message)
}

// interact requests notification permission on the first user interaction.
func (s *Session) interact() {
	if s.interacted {
		return
	}
	s.interacted = true
	s.bridge.RequestPermission(s.config.AskPermission)
}

func (s *Session) submit() {
	if !chat.Validate(s.name, s.message) {
		return
	}

	msg := protocol.ChatMessage{
		Username: s.name,
		Time:     chat.FormatTime(s.clock.Now()),
		Content:  s.message,
	}
	if err := s.sender.Send(msg); err != nil {
		log.Printf("session: send failed session=%s: %v", s.ID, err)
		return
	}

	s.message = ""
	s.surface.ClearMessage()
	s.updateButton()
}

func (s *Session) sendTyping(ev protocol.TypingEvent) {
	if err := s.sender.Send(ev); err != nil {
		log.Printf("session: typing event failed session=%s: %v", s.ID, err)
	}
}

func (s *Session) updateButton() {
	s.surface.SetSendEnabled(chat.Validate(s.name, s.message))
}
