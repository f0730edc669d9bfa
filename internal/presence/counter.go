// Package presence renders the server-reported count of connected users.
package presence

import (
	"fmt"

	"github.com/whisper/chat-client/internal/metrics"
	"github.com/whisper/chat-client/internal/ui"
)

// Counter is a stateless projection of UserCountChange frames onto a
// presence display.
type Counter struct {
	display ui.PresenceDisplay
}

// NewCounter creates a Counter rendering on display.
func NewCounter(display ui.PresenceDisplay) *Counter {
	return &Counter{display: display}
}

// Update replaces the displayed text. The count is shown as received.
func (c *Counter) Update(count int64) {
	c.display.SetPresence(Text(count))
	metrics.PresenceUsers.Set(float64(count))
}

// Text formats a user count for display.
func Text(count int64) string {
	return fmt.Sprintf("Users Online: %d", count)
}
