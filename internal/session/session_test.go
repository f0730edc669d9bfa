package session

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/chat-client/internal/clock"
	"github.com/whisper/chat-client/internal/notify"
	"github.com/whisper/chat-client/internal/protocol"
	"github.com/whisper/chat-client/internal/ui"
	"github.com/whisper/chat-client/internal/ws"
	"github.com/whisper/chat-client/internal/ws/wstest"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeSender struct {
	mu   sync.Mutex
	sent []protocol.Outbound
	err  error
}

func (f *fakeSender) Send(msg protocol.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSender) messages() []protocol.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Outbound, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSender) typing(starting bool) int {
	n := 0
	for _, msg := range f.messages() {
		if ev, ok := msg.(protocol.TypingEvent); ok && ev.IsStarting == starting {
			n++
		}
	}
	return n
}

func (f *fakeSender) chats() []protocol.ChatMessage {
	var out []protocol.ChatMessage
	for _, msg := range f.messages() {
		if m, ok := msg.(protocol.ChatMessage); ok {
			out = append(out, m)
		}
	}
	return out
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingNotifier) notifications() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Notification, len(r.got))
	copy(out, r.got)
	return out
}

type testSession struct {
	*Session
	sender   *fakeSender
	surface  *ui.Memory
	notifier *recordingNotifier
	clock    *clock.Manual
	marker   int
}

func newTestSession(t *testing.T, config Config) *testSession {
	t.Helper()

	ts := &testSession{
		sender:   &fakeSender{},
		surface:  ui.NewMemory(),
		notifier: &recordingNotifier{},
		clock:    clock.NewManual(time.Date(2024, 3, 1, 13, 5, 9, 0, time.Local)),
	}
	ts.Session = New(config, ts.sender, ts.surface, ts.notifier, ts.clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ts
}

// sync waits until every event posted so far has been processed, using a
// presence update as a barrier.
func (ts *testSession) sync(t *testing.T) {
	t.Helper()
	ts.marker++
	want := fmt.Sprintf("Users Online: %d", 1000+ts.marker)
	ts.Frame([]byte(fmt.Sprintf(`{"UserCountChange":%d}`, 1000+ts.marker)))
	require.Eventually(t, func() bool { return ts.surface.Presence() == want }, waitFor, tick)
}

func TestSessionSubmitSendsChatMessage(t *testing.T) {
	ts := newTestSession(t, DefaultConfig())

	ts.Input("  Ann ", "hi  ")
	ts.sync(t)
	assert.True(t, ts.surface.SendEnabled())

	ts.Submit("  Ann ", "hi  ")
	ts.sync(t)

	chats := ts.sender.chats()
	require.Len(t, chats, 1)
	assert.Equal(t, protocol.ChatMessage{Username: "Ann", Time: "1:05:09 PM", Content: "hi"}, chats[0])

	data, err := protocol.Encode(chats[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"ChatMessage":{"username":"Ann","time":"1:05:09 PM","content":"hi"}}`, string(data))

	assert.Equal(t, 1, ts.surface.Clears())
	assert.False(t, ts.surface.SendEnabled())

	// The message field is empty now, so a second submit is a no-op.
	ts.Submit("Ann", "")
	ts.sync(t)
	assert.Len(t, ts.sender.chats(), 1)
}

func TestSessionInvalidSubmitIsNoop(t *testing.T) {
	tests := []struct {
		name, message string
	}{
		{"", "hi"},
		{"Ann", ""},
		{"   ", "hi"},
		{strings.Repeat("a", 32), "hi"},
		{"Ann", strings.Repeat("m", 256)},
	}

	for _, tt := range tests {
		ts := newTestSession(t, DefaultConfig())
		ts.Submit(tt.name, tt.message)
		ts.sync(t)

		assert.Empty(t, ts.sender.chats(), "name=%q message len=%d", tt.name, len(tt.message))
		assert.Zero(t, ts.surface.Clears())
		assert.False(t, ts.surface.SendEnabled())
	}
}

func TestSessionSubmitUsesFieldsAtEnter(t *testing.T) {
	ts := newTestSession(t, DefaultConfig())

	// A keystroke typed right after Enter reaches the loop after the submit
	// and leaves stale text behind once the input has been cleared.
	ts.Input("Ann", "hi")
	ts.Submit("Ann", "hi")
	ts.Input("Ann", "hix")
	ts.sync(t)
	require.Len(t, ts.sender.chats(), 1)

	// The next Enter carries the cleared input, so the stale text is not sent.
	ts.Submit("Ann", "")
	ts.sync(t)

	chats := ts.sender.chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "hi", chats[0].Content)
	assert.False(t, ts.surface.SendEnabled())
}

func TestSessionSendFailureKeepsMessage(t *testing.T) {
	ts := newTestSession(t, DefaultConfig())
	ts.sender.fail(ws.ErrClosed)

	ts.Submit("Ann", "hi")
	ts.sync(t)

	assert.Zero(t, ts.surface.Clears())
	assert.True(t, ts.surface.SendEnabled())

	// The session keeps going after the failure.
	ts.Frame([]byte(`{"SystemMessage":"after"}`))
	require.Eventually(t, func() bool { return len(ts.surface.Log()) == 1 }, waitFor, tick)
}

func TestSessionTypingDebounce(t *testing.T) {
	ts := newTestSession(t, DefaultConfig())

	for i := 0; i < 5; i++ {
		ts.Input("Ann", strings.Repeat("h", i+1))
		ts.sync(t)
		ts.clock.Advance(300 * time.Millisecond)
	}
	ts.sync(t)

	assert.Equal(t, 1, ts.sender.typing(true))
	assert.Equal(t, 0, ts.sender.typing(false))

	ts.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return ts.sender.typing(false) == 1 }, waitFor, tick)

	sent := ts.sender.messages()
	assert.Equal(t, protocol.TypingEvent{Username: "Ann", IsStarting: true}, sent[0])
	assert.Equal(t, protocol.TypingEvent{Username: "Ann", IsStarting: false}, sent[len(sent)-1])

	// Typing again after the stop starts a new cycle.
	ts.Input("Ann", "again")
	ts.sync(t)
	assert.Equal(t, 2, ts.sender.typing(true))
}

func TestSessionTypingStopUsesCurrentName(t *testing.T) {
	ts := newTestSession(t, DefaultConfig())

	ts.Input("Ann", "h")
	ts.sync(t)
	ts.SetFields("Anna", "h")
	ts.sync(t)

	ts.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return ts.sender.typing(false) == 1 }, waitFor, tick)

	sent := ts.sender.messages()
	assert.Equal(t, protocol.TypingEvent{Username: "Anna", IsStarting: false}, sent[len(sent)-1])
}

func TestSessionEmptyNameBypassesTyping(t *testing.T) {
	ts := newTestSession(t, DefaultConfig())

	ts.Input("", "hello")
	ts.sync(t)

	assert.Empty(t, ts.sender.messages())
	assert.Zero(t, ts.clock.Pending())
	assert.False(t, ts.surface.SendEnabled())
}

func TestSessionUserCountChange(t *testing.T) {
	ts := newTestSession(t, DefaultConfig())

	ts.Frame([]byte(`{"UserCountChange": 7}`))
	require.Eventually(t, func() bool { return ts.surface.Presence() == "Users Online: 7" }, waitFor, tick)
}

func TestSessionNotificationGatedByFocus(t *testing.T) {
	config := DefaultConfig()
	config.Notify.Permission = notify.PermissionGranted
	ts := newTestSession(t, config)

	ts.Frame([]byte(`{"SystemMessage":"while focused"}`))
	ts.sync(t)
	assert.Empty(t, ts.notifier.notifications())

	ts.Focus(false)
	ts.Frame([]byte(`{"SystemMessage":"x"}`))
	ts.Frame([]byte(`{"ChatMessage":{"username":"Bob","time":"1:00:00 PM","content":"yo"}}`))
	ts.sync(t)
	assert.False(t, ts.Focused())

	got := ts.notifier.notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "System Message", got[0].Title)
	assert.Equal(t, "x", got[0].Body)
	assert.Equal(t, "Bob", got[1].Title)
	assert.Equal(t, "yo", got[1].Body)
	assert.Equal(t, ts.ID, got[0].SessionID)
	assert.Equal(t, 5*time.Second, got[0].Timeout)

	ts.Focus(true)
	ts.Frame([]byte(`{"SystemMessage":"back"}`))
	ts.sync(t)
	assert.Len(t, ts.notifier.notifications(), 2)
	assert.Equal(t, []string{"while focused", "x", "Bob at 1:00:00 PM: yo", "back"}, ts.surface.Log())
}

func TestSessionSettledPermissionNotifiesBeforeInteraction(t *testing.T) {
	config := DefaultConfig()
	config.Notify.Permission = notify.PermissionGranted
	config.AskPermission = func() bool {
		t.Error("settled permission must not be asked again")
		return false
	}
	ts := newTestSession(t, config)

	ts.Focus(false)
	ts.Frame([]byte(`{"SystemMessage":"x"}`))
	ts.sync(t)

	got := ts.notifier.notifications()
	require.Len(t, got, 1)
	assert.Equal(t, "System Message", got[0].Title)
	assert.Equal(t, "x", got[0].Body)

	ts.Input("Ann", "h")
	ts.sync(t)
	assert.Equal(t, notify.PermissionGranted, ts.Permission())
}

func TestSessionRequestsPermissionOnFirstInteraction(t *testing.T) {
	asked := 0
	config := DefaultConfig()
	config.AskPermission = func() bool { asked++; return true }
	ts := newTestSession(t, config)

	ts.Frame([]byte(`{"SystemMessage":"hello"}`))
	ts.sync(t)
	assert.Equal(t, notify.PermissionDefault, ts.Permission())

	ts.Input("Ann", "h")
	ts.Input("Ann", "hi")
	ts.Submit("Ann", "hi")
	ts.sync(t)

	assert.Equal(t, 1, asked)
	assert.Equal(t, notify.PermissionGranted, ts.Permission())
}

func TestSessionDuplicateTypers(t *testing.T) {
	ts := newTestSession(t, DefaultConfig())

	ts.Frame([]byte(`{"TypingEvent":{"username":"Bob","is_starting":true}}`))
	ts.Frame([]byte(`{"TypingEvent":{"username":"Bob","is_starting":true}}`))
	ts.Frame([]byte(`{"TypingEvent":{"username":"Bob","is_starting":false}}`))
	ts.sync(t)

	assert.Equal(t, []string{"Bob"}, ts.surface.Typers())
}

func TestSessionPostAfterRunReturns(t *testing.T) {
	s := New(DefaultConfig(), &fakeSender{}, ui.NewMemory(), nil, clock.NewManual(time.Unix(0, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Frame([]byte(`{"SystemMessage":"late"}`))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("posting after Run returned blocked")
	}
}

func TestSessionOverWebSocket(t *testing.T) {
	received := make(chan string, 4)
	_, wsConfig := wstest.NewServer(t, func(conn net.Conn) {
		if err := wstest.WriteText(conn, `{"UserCountChange":7}`); err != nil {
			return
		}
		for {
			data, err := wstest.ReadText(conn)
			if err != nil {
				return
			}
			received <- data
		}
	})

	conn, err := ws.Dial(context.Background(), wsConfig)
	require.NoError(t, err)
	defer conn.Close()

	config := DefaultConfig()
	config.Typing.Delay = time.Hour
	surface := ui.NewMemory()
	clk := clock.NewManual(time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local))
	sess := New(config, conn, surface, nil, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)
	go conn.Run(ctx, sess.Frame)

	require.Eventually(t, func() bool { return surface.Presence() == "Users Online: 7" }, waitFor, tick)

	sess.Input("Ann", "hi")
	sess.Submit("Ann", "hi")

	var frames []string
	timeout := time.After(waitFor)
	for len(frames) < 2 {
		select {
		case f := <-received:
			frames = append(frames, f)
		case <-timeout:
			t.Fatalf("timeout waiting for frames, got %v", frames)
		}
	}

	assert.JSONEq(t, `{"TypingEvent":{"username":"Ann","is_starting":true}}`, frames[0])
	assert.JSONEq(t, `{"ChatMessage":{"username":"Ann","time":"9:00:00 AM","content":"hi"}}`, frames[1])
	require.Eventually(t, func() bool { return surface.Clears() == 1 }, waitFor, tick)
	assert.False(t, surface.SendEnabled())
}
