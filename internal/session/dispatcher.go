package session

import (
	"context"
	"fmt"
	"log"

	"github.com/whisper/chat-client/internal/metrics"
	"github.com/whisper/chat-client/internal/presence"
	"github.com/whisper/chat-client/internal/protocol"
	"github.com/whisper/chat-client/internal/ui"
)

// SystemTitle is the notification title used for server announcements.
const SystemTitle = "System Message"

// Alerter shows a notification outside the chat window. *notify.Bridge
// satisfies it.
type Alerter interface {
	Notify(ctx context.Context, title, body string) (bool, error)
}

// Dispatcher routes decoded server frames to the rendering surface, the
// presence counter and the notification bridge.
type Dispatcher struct {
	surface  ui.Surface
	presence *presence.Counter
	alerter  Alerter
	focused  func() bool
}

// NewDispatcher creates a Dispatcher. focused reports the current focus state
// and is read once per frame that may notify. A nil alerter disables
// notifications.
func NewDispatcher(surface ui.Surface, alerter Alerter, focused func() bool) *Dispatcher {
	if focused == nil {
		focused = func() bool { return true }
	}
	return &Dispatcher{
		surface:  surface,
		presence: presence.NewCounter(surface),
		alerter:  alerter,
		focused:  focused,
	}
}

// Dispatch decodes one raw frame and applies it. Frames that fail to decode
// are logged and dropped; the caller keeps reading.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) {
	msg, err := protocol.DecodeInbound(data)
	if err != nil {
		metrics.FramesTotal.WithLabelValues("dropped").Inc()
		log.Printf("session: dropping frame: %v", err)
		return
	}
	metrics.FramesTotal.WithLabelValues(msg.Type()).Inc()
	d.Handle(ctx, msg)
}

// Handle applies an already decoded message.
func (d *Dispatcher) Handle(ctx context.Context, msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.SystemMessage:
		d.surface.AppendLog(m.Text)
		d.alert(ctx, SystemTitle, m.Text)

	case protocol.ChatMessage:
		d.surface.AppendLog(ChatLine(m))
		d.alert(ctx, m.Username, m.Content)

	case protocol.UserCountChange:
		d.presence.Update(m.Count)

	case protocol.TypingEvent:
		if m.IsStarting {
			d.surface.AddTyper(m.Username)
		} else {
			d.surface.RemoveTyper(m.Username)
		}

	default:
		log.Printf("session: unhandled message type=%q", msg.Type())
	}
}

func (d *Dispatcher) alert(ctx context.Context, title, body string) {
	if d.alerter == nil || d.focused() {
		return
	}
	if _, err := d.alerter.Notify(ctx, title, body); err != nil {
		log.Printf("session: notification failed: %v", err)
	}
}

// ChatLine formats a chat message for the log.
func ChatLine(m protocol.ChatMessage) string {
	return fmt.Sprintf("%s at %s: %s", m.Username, m.Time, m.Content)
}
