package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/whisper/chat-client/internal/clock"
)

// Display shows notifications for an Agent and takes them down again.
type Display interface {
	Show(n Notification) error
	Close(n Notification) error
}

// ConsoleDisplay shows notifications as OSC 9 sequences followed by a text
// line, and reports each close on its own line.
type ConsoleDisplay struct {
	w   io.Writer
	osc *TerminalNotifier
}

// NewConsoleDisplay creates a ConsoleDisplay writing to w.
func NewConsoleDisplay(w io.Writer) *ConsoleDisplay {
	return &ConsoleDisplay{w: w, osc: NewTerminalNotifier(w)}
}

// Show writes n.
func (d *ConsoleDisplay) Show(n Notification) error {
	if err := d.osc.Notify(context.Background(), n); err != nil {
		return err
	}
	_, err := fmt.Fprintf(d.w, "\n[%s] %s: %s\n", oscSafe(n.SessionID), oscSafe(n.Title), oscSafe(n.Body))
	return err
}

// Close reports that n was taken down.
func (d *ConsoleDisplay) Close(n Notification) error {
	_, err := fmt.Fprintf(d.w, "[%s] closed: %s\n", oscSafe(n.SessionID), oscSafe(n.Title))
	return err
}

type shown struct {
	n     Notification
	timer clock.Timer
	gen   uint64
}

// Agent is the receiving end of NATSNotifier. It shows every notification it
// is handed and closes it once its Lifetime has passed. A notification with
// an ID that is already open is shown again and its timer restarts.
type Agent struct {
	display Display
	clock   clock.Clock

	mu     sync.Mutex
	open   map[string]*shown
	gen    uint64
	closed bool
}

// NewAgent creates an Agent on display. A nil clk uses the real clock.
func NewAgent(display Display, clk clock.Clock) *Agent {
	if clk == nil {
		clk = clock.Real()
	}
	return &Agent{
		display: display,
		clock:   clk,
		open:    make(map[string]*shown),
	}
}

// Handle decodes one published notification and shows it.
func (a *Agent) Handle(data []byte) error {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("notify: decode notification: %w", err)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return a.Show(n)
}

// Show displays n and arms its close timer.
func (a *Agent) Show(n Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	if prev, ok := a.open[n.ID]; ok {
		prev.timer.Stop()
		delete(a.open, n.ID)
	}
	if err := a.display.Show(n); err != nil {
		return fmt.Errorf("notify: show %s: %w", n.ID, err)
	}

	a.gen++
	gen := a.gen
	id := n.ID
	a.open[id] = &shown{
		n:     n,
		gen:   gen,
		timer: a.clock.AfterFunc(n.Lifetime(), func() { a.expire(id, gen) }),
	}
	return nil
}

// expire closes the notification id if the timer generation gen is still
// the current one for it.
func (a *Agent) expire(id string, gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.open[id]
	if !ok || s.gen != gen {
		return
	}
	delete(a.open, id)
	if err := a.display.Close(s.n); err != nil {
		log.Printf("notify: close %s: %v", id, err)
	}
}

// Open returns the number of notifications currently shown.
func (a *Agent) Open() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.open)
}

// Close stops every pending timer and closes what is still shown. Later
// notifications are ignored.
func (a *Agent) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	for id, s := range a.open {
		s.timer.Stop()
		if err := a.display.Close(s.n); err != nil {
			log.Printf("notify: close %s: %v", id, err)
		}
	}
	a.open = make(map[string]*shown)
}
