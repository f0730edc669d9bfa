package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// TerminalNotifier rings the bell and emits an OSC 9 desktop notification,
// which terminals such as iTerm2, kitty and WezTerm turn into a system
// notification. OSC 9 has no close sequence, so a TerminalNotifier cannot
// dismiss what it showed; use NATSNotifier with an Agent for timed
// dismissal.
type TerminalNotifier struct {
	w io.Writer
}

// NewTerminalNotifier creates a TerminalNotifier writing to w.
func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{w: w}
}

// Notify writes n as an OSC 9 sequence.
func (t *TerminalNotifier) Notify(_ context.Context, n Notification) error {
	text := oscSafe(n.Title) + ": " + oscSafe(n.Body)
	if _, err := fmt.Fprintf(t.w, "\a\x1b]9;%s\x07", text); err != nil {
		return fmt.Errorf("notify: terminal write: %w", err)
	}
	return nil
}

// oscSafe strips the bytes that would terminate an OSC sequence early.
func oscSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// Publisher publishes raw payloads on a subject. *messaging.NATSClient
// satisfies it.
type Publisher interface {
	PublishNotification(sessionID string, data []byte) error
}

// NATSNotifier publishes notifications as JSON on notify.<session_id>. An
// Agent subscribed to that subject shows each one and closes it after
// timeout_ms.
type NATSNotifier struct {
	pub Publisher
}

// NewNATSNotifier creates a NATSNotifier on pub.
func NewNATSNotifier(pub Publisher) *NATSNotifier {
	return &NATSNotifier{pub: pub}
}

// Notify publishes note on its session's subject.
func (n *NATSNotifier) Notify(_ context.Context, note Notification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}
	if err := n.pub.PublishNotification(note.SessionID, data); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}

// Multi fans a notification out to every backend and joins their errors.
type Multi []Notifier

// Notify hands n to every backend, including after a failure.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
