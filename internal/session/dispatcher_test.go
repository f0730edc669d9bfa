package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/chat-client/internal/protocol"
	"github.com/whisper/chat-client/internal/ui"
)

type alert struct {
	title, body string
}

type fakeAlerter struct {
	alerts []alert
	err    error
}

func (a *fakeAlerter) Notify(_ context.Context, title, body string) (bool, error) {
	a.alerts = append(a.alerts, alert{title, body})
	return a.err == nil, a.err
}

func newTestDispatcher(focused *bool) (*Dispatcher, *ui.Memory, *fakeAlerter) {
	surface := ui.NewMemory()
	alerter := &fakeAlerter{}
	d := NewDispatcher(surface, alerter, func() bool { return *focused })
	return d, surface, alerter
}

func TestDispatchSystemMessage(t *testing.T) {
	focused := false
	d, surface, alerter := newTestDispatcher(&focused)

	d.Dispatch(context.Background(), []byte(`{"SystemMessage":"x"}`))

	assert.Equal(t, []string{"x"}, surface.Log())
	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, alert{"System Message", "x"}, alerter.alerts[0])
}

func TestDispatchChatMessage(t *testing.T) {
	focused := false
	d, surface, alerter := newTestDispatcher(&focused)

	d.Dispatch(context.Background(), []byte(`{"ChatMessage":{"username":"Ann","time":"1:00:00 PM","content":"hi"}}`))

	assert.Equal(t, []string{"Ann at 1:00:00 PM: hi"}, surface.Log())
	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, alert{"Ann", "hi"}, alerter.alerts[0])
}

func TestDispatchFocusedDoesNotNotify(t *testing.T) {
	focused := true
	d, surface, alerter := newTestDispatcher(&focused)

	d.Dispatch(context.Background(), []byte(`{"SystemMessage":"x"}`))

	assert.Equal(t, []string{"x"}, surface.Log())
	assert.Empty(t, alerter.alerts)
}

func TestDispatchUserCountChange(t *testing.T) {
	focused := true
	d, surface, _ := newTestDispatcher(&focused)

	d.Dispatch(context.Background(), []byte(`{"UserCountChange": 7}`))
	assert.Equal(t, "Users Online: 7", surface.Presence())

	d.Dispatch(context.Background(), []byte(`{"UserCountChange": 0}`))
	assert.Equal(t, "Users Online: 0", surface.Presence())
}

func TestDispatchTypingEvents(t *testing.T) {
	focused := true
	d, surface, _ := newTestDispatcher(&focused)
	ctx := context.Background()

	d.Dispatch(ctx, []byte(`{"TypingEvent":{"username":"Bob","is_starting":true}}`))
	d.Dispatch(ctx, []byte(`{"TypingEvent":{"username":"Cat","is_starting":true}}`))
	d.Dispatch(ctx, []byte(`{"TypingEvent":{"username":"Bob","is_starting":true}}`))
	assert.Equal(t, []string{"Bob", "Cat", "Bob"}, surface.Typers())

	d.Dispatch(ctx, []byte(`{"TypingEvent":{"username":"Bob","is_starting":false}}`))
	assert.Equal(t, []string{"Cat", "Bob"}, surface.Typers())

	d.Dispatch(ctx, []byte(`{"TypingEvent":{"username":"Zed","is_starting":false}}`))
	assert.Equal(t, []string{"Cat", "Bob"}, surface.Typers())
}

func TestDispatchDropsMalformedFrames(t *testing.T) {
	focused := false
	d, surface, alerter := newTestDispatcher(&focused)
	ctx := context.Background()

	frames := []string{
		`{}`,
		`{"SystemMessage":"a","UserCountChange":1}`,
		`{"Bogus":1}`,
		`not json`,
		`{"UserCountChange":"seven"}`,
	}
	for _, f := range frames {
		d.Dispatch(ctx, []byte(f))
	}

	assert.Empty(t, surface.Log())
	assert.Empty(t, surface.Presence())
	assert.Empty(t, alerter.alerts)

	d.Dispatch(ctx, []byte(`{"SystemMessage":"still here"}`))
	assert.Equal(t, []string{"still here"}, surface.Log())
}

func TestDispatchNotificationFailureDoesNotAffectLog(t *testing.T) {
	focused := false
	d, surface, alerter := newTestDispatcher(&focused)
	alerter.err = errors.New("backend down")

	d.Dispatch(context.Background(), []byte(`{"SystemMessage":"a"}`))
	d.Dispatch(context.Background(), []byte(`{"SystemMessage":"b"}`))

	assert.Equal(t, []string{"a", "b"}, surface.Log())
}

func TestChatLine(t *testing.T) {
	line := ChatLine(protocol.ChatMessage{Username: "Ann", Time: "9:41:00 AM", Content: "hello there"})
	assert.Equal(t, "Ann at 9:41:00 AM: hello there", line)
}
