package term

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// NickCommand changes the name field instead of sending a message.
const NickCommand = "/nick"

// Poster receives input events. *session.Session satisfies it.
type Poster interface {
	Input(name, message string)
	SetFields(name, message string)
	Submit(name, message string)
	Focus(focused bool)
}

// Buffer holds the name and message inputs being edited. *ui.Terminal
// satisfies it.
type Buffer interface {
	Insert(r rune) (name, message string)
	Backspace() (name, message string)
	Fields() (name, message string)
	SetName(name string)
	ClearMessage()
	Refresh()
}

// LineEditor turns key events into session events.
type LineEditor struct {
	buf    Buffer
	poster Poster
}

// NewLineEditor creates a LineEditor editing buf and posting to poster.
func NewLineEditor(buf Buffer, poster Poster) *LineEditor {
	return &LineEditor{buf: buf, poster: poster}
}

// Run reads keys until the input ends or the user interrupts. It returns nil
// in both cases.
func (e *LineEditor) Run(r *Reader) error {
	for {
		key, err := r.ReadKey()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !e.Handle(key) {
			return nil
		}
	}
}

// Handle applies one key and reports whether editing should continue.
func (e *LineEditor) Handle(key Key) bool {
	switch key.Kind {
	case KeyRune:
		e.poster.Input(e.buf.Insert(key.Rune))
	case KeyBackspace:
		e.poster.Input(e.buf.Backspace())
	case KeyEnter:
		e.enter()
	case KeyFocusIn:
		e.poster.Focus(true)
	case KeyFocusOut:
		e.poster.Focus(false)
	case KeyRedraw:
		e.buf.Refresh()
	case KeyInterrupt:
		return false
	}
	return true
}

func (e *LineEditor) enter() {
	name, message := e.buf.Fields()
	if nick, ok := parseNick(message); ok {
		e.buf.SetName(nick)
		e.buf.ClearMessage()
		e.poster.SetFields(nick, "")
		return
	}
	e.poster.Submit(name, message)
}

// parseNick recognizes "/nick <name>".
func parseNick(line string) (string, bool) {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, NickCommand)
	if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// RunLines drives the session from line-oriented input such as a pipe. Each
// line is sent as one message under name; "/nick <name>" lines change it.
func RunLines(r io.Reader, name string, poster Poster) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if nick, ok := parseNick(line); ok {
			name = nick
			poster.SetFields(name, "")
			continue
		}
		poster.Input(name, line)
		poster.Submit(name, line)
	}
	return sc.Err()
}
