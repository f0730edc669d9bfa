package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"
)

// ANSI sequences used by the interactive terminal.
const (
	clearLine   = "\r\x1b[K"
	clearScreen = "\x1b[H\x1b[2J"
)

// TerminalConfig holds terminal rendering options.
type TerminalConfig struct {
	Interactive bool // redraw a prompt line below the log
	Scrollback  int  // lines kept for Refresh
}

// Terminal renders a chat session on a text terminal. In interactive mode
// the last line of the screen is a prompt showing presence, typers, the
// name and the message being edited; log lines are printed above it. It also
// owns the name and message inputs so that the session can clear them.
//
// All methods are goroutine-safe. Terminal is an io.Writer so that other
// writers (notifications) share its lock.
type Terminal struct {
	mu          sync.Mutex
	w           io.Writer
	interactive bool
	scroll      *Scrollback

	typers      TypingList
	presence    string
	sendEnabled bool
	name        string
	message     []rune
}

// NewTerminal creates a Terminal writing to w with name as the initial
// contents of the name input.
func NewTerminal(w io.Writer, name string, config TerminalConfig) *Terminal {
	return &Terminal{
		w:           w,
		interactive: config.Interactive,
		scroll:      NewScrollback(config.Scrollback),
		name:        name,
	}
}

// ---------------------------------------------------------------------------
// Surface
// ---------------------------------------------------------------------------

// AppendLog prints line above the prompt and keeps it in the scrollback.
func (t *Terminal) AppendLog(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	line = sanitize(line)
	t.scroll.Add(line)
	if t.interactive {
		fmt.Fprint(t.w, clearLine+line+"\n")
		t.drawPromptLocked()
		return
	}
	fmt.Fprintln(t.w, line)
}

// AddTyper adds name to the typing list shown in the prompt.
func (t *Terminal) AddTyper(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typers.Add(name)
	t.drawPromptLocked()
}

// RemoveTyper removes name and reports whether it was listed. The prompt is
// redrawn only when the list changed.
func (t *Terminal) RemoveTyper(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ok := t.typers.Remove(name)
	if ok {
		t.drawPromptLocked()
	}
	return ok
}

// SetPresence shows text in the prompt, or prints it on its own line when
// the terminal is not interactive.
func (t *Terminal) SetPresence(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.presence = text
	if !t.interactive {
		fmt.Fprintln(t.w, "-- "+sanitize(text))
		return
	}
	t.drawPromptLocked()
}

// SetSendEnabled toggles the send marker in the prompt.
func (t *Terminal) SetSendEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendEnabled = enabled
	t.drawPromptLocked()
}

// ClearMessage empties the message input.
func (t *Terminal) ClearMessage() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = t.message[:0]
	t.drawPromptLocked()
}

// ---------------------------------------------------------------------------
// Inputs
// ---------------------------------------------------------------------------

// Insert appends r to the message input and returns both inputs.
func (t *Terminal) Insert(r rune) (name, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = append(t.message, r)
	t.drawPromptLocked()
	return t.name, string(t.message)
}

// Backspace deletes the last rune of the message input and returns both
// inputs.
func (t *Terminal) Backspace() (name, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.message); n > 0 {
		t.message = t.message[:n-1]
	}
	t.drawPromptLocked()
	return t.name, string(t.message)
}

// Fields returns the current name and message inputs.
func (t *Terminal) Fields() (name, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name, string(t.message)
}

// SetName replaces the name input.
func (t *Terminal) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
	t.drawPromptLocked()
}

// Refresh clears the screen and replays the scrollback and the prompt.
func (t *Terminal) Refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.interactive {
		return
	}
	var b strings.Builder
	b.WriteString(clearScreen)
	for _, line := range t.scroll.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	io.WriteString(t.w, b.String())
	t.drawPromptLocked()
}

// Write prints p above the prompt.
func (t *Terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.interactive {
		io.WriteString(t.w, clearLine)
	}
	n, err := t.w.Write(p)
	t.drawPromptLocked()
	return n, err
}

// Close moves the cursor below the prompt.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.interactive {
		_, err := io.WriteString(t.w, "\n")
		return err
	}
	return nil
}

// drawPromptLocked rewrites the prompt line. Caller holds t.mu.
func (t *Terminal) drawPromptLocked() {
	if !t.interactive {
		return
	}
	var b strings.Builder
	b.WriteString(clearLine)
	if t.presence != "" {
		b.WriteString("[" + sanitize(t.presence) + "] ")
	}
	if t.typers.Len() > 0 {
		names := t.typers.Names()
		for i, n := range names {
			names[i] = sanitize(n) + " is typing"
		}
		b.WriteString("(" + strings.Join(names, ", ") + ") ")
	}
	b.WriteString(sanitize(t.name))
	if t.sendEnabled {
		b.WriteString("> ")
	} else {
		b.WriteString("| ")
	}
	b.WriteString(sanitize(string(t.message)))
	io.WriteString(t.w, b.String())
}

// sanitize replaces control characters so that remote text cannot drive the
// terminal.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '�'
		}
		return r
	}, s)
}
