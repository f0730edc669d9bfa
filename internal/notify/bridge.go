// Package notify bridges chat activity to desktop notifications. A Bridge
// decides whether a notification may be shown (window unfocused, permission
// granted) and hands it to a Notifier backend; backends decide how it is
// displayed and dismissed.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whisper/chat-client/internal/metrics"
)

// Permission is the tri-state notification permission.
type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

// String returns the string representation of Permission.
func (p Permission) String() string {
	switch p {
	case PermissionDefault:
		return "default"
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Notification is a transient message shown outside the chat window. It is
// closed Lifetime after it is shown.
type Notification struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id,omitempty"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	Timeout   time.Duration `json:"-"`
	TimeoutMS int64         `json:"timeout_ms"`
}

// Lifetime returns how long the notification stays up. Timeout is only set
// in process; after a JSON round trip TimeoutMS carries it.
func (n Notification) Lifetime() time.Duration {
	if n.Timeout > 0 {
		return n.Timeout
	}
	if n.TimeoutMS > 0 {
		return time.Duration(n.TimeoutMS) * time.Millisecond
	}
	return DefaultConfig().Timeout
}

// Notifier displays notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// FocusReader reports whether the chat window currently has focus.
type FocusReader interface {
	Focused() bool
}

// Config holds notification settings.
type Config struct {
	Timeout    time.Duration // auto-dismiss delay
	SessionID  string        // stamped on every notification
	Permission Permission    // initial permission
}

// DefaultConfig returns the five-second auto-dismiss delay.
func DefaultConfig() Config {
	return Config{Timeout: 5000 * time.Millisecond}
}

// Bridge gates notifications on focus and permission. Notifications are
// issued immediately, one per call; nothing is queued for later.
type Bridge struct {
	config   Config
	notifier Notifier
	focus    FocusReader

	mu         sync.Mutex
	permission Permission
}

// NewBridge creates a Bridge. A nil notifier disables display but keeps the
// gating logic.
func NewBridge(config Config, notifier Notifier, focus FocusReader) *Bridge {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Bridge{
		config:     config,
		notifier:   notifier,
		focus:      focus,
		permission: config.Permission,
	}
}

// Permission returns the current permission.
func (b *Bridge) Permission() Permission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.permission
}

// RequestPermission asks for permission once. ask is only consulted while the
// permission is still default; later calls return the settled value.
func (b *Bridge) RequestPermission(ask func() bool) Permission {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.permission != PermissionDefault {
		return b.permission
	}
	if ask != nil && ask() {
		b.permission = PermissionGranted
	} else {
		b.permission = PermissionDenied
	}
	log.Printf("notify: permission %s", b.permission)
	return b.permission
}

// Notify shows a notification unless the window is focused or permission is
// missing. It reports whether the notification was handed to the backend.
// Backend errors are logged and returned but never retried.
func (b *Bridge) Notify(ctx context.Context, title, body string) (bool, error) {
	if b.focus != nil && b.focus.Focused() {
		metrics.NotificationsTotal.WithLabelValues("focused").Inc()
		return false, nil
	}
	if b.Permission() != PermissionGranted {
		metrics.NotificationsTotal.WithLabelValues("no_permission").Inc()
		return false, nil
	}
	if b.notifier == nil {
		return false, nil
	}

	n := Notification{
		ID:        uuid.NewString(),
		SessionID: b.config.SessionID,
		Title:     title,
		Body:      body,
		Timeout:   b.config.Timeout,
		TimeoutMS: b.config.Timeout.Milliseconds(),
	}
	if err := b.notifier.Notify(ctx, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		log.Printf("notify: failed to show %q: %v", title, err)
		return false, err
	}
	metrics.NotificationsTotal.WithLabelValues("shown").Inc()
	return true, nil
}
