package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/chat-client/internal/clock"
	"github.com/whisper/chat-client/internal/messaging"
	"github.com/whisper/chat-client/internal/notify"
)

// syncBuffer is a bytes.Buffer safe for the NATS callback goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type unfocused struct{}

func (unfocused) Focused() bool { return false }

func TestAgentShowsAndClosesPublishedNotifications(t *testing.T) {
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.MaxReconnects = 0
	publisher, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		t.Skipf("nats not available: %v", err)
	}
	t.Cleanup(publisher.Close)

	out := &syncBuffer{}
	clk := clock.NewManual(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runAgent(ctx, natsConfig, "agent-mine", out, clk) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	bridgeFor := func(sessionID string) *notify.Bridge {
		cfg := notify.DefaultConfig()
		cfg.SessionID = sessionID
		cfg.Permission = notify.PermissionGranted
		return notify.NewBridge(cfg, notify.NewNATSNotifier(publisher), unfocused{})
	}
	mine := bridgeFor("agent-mine")
	other := bridgeFor("agent-other")

	// Publish until the agent's subscription is live. NATS keeps the order
	// of one publisher, so "elsewhere" always goes out before "Ann".
	require.Eventually(t, func() bool {
		other.Notify(ctx, "elsewhere", "not for this agent")
		mine.Notify(ctx, "Ann", "hi")
		publisher.Flush()
		return strings.Contains(out.String(), "[agent-mine] Ann: hi")
	}, 5*time.Second, 50*time.Millisecond)

	assert.Contains(t, out.String(), "\x1b]9;Ann: hi\x07")
	assert.NotContains(t, out.String(), "elsewhere")
	assert.NotContains(t, out.String(), "closed")

	clk.Advance(5 * time.Second)
	assert.Contains(t, out.String(), "[agent-mine] closed: Ann")
}
