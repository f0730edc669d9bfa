// Package term puts the controlling terminal into cbreak mode, turns on focus
// reporting and decodes keystrokes into events for the chat session.
package term

import (
	"errors"
	"io"
)

// ErrNotTerminal is returned when cbreak mode is requested for a descriptor
// that is not a terminal.
var ErrNotTerminal = errors.New("term: not a terminal")

// Focus reporting (xterm mode 1004). While enabled, the terminal sends
// ESC [ I when it gains focus and ESC [ O when it loses it.
const (
	focusOn  = "\x1b[?1004h"
	focusOff = "\x1b[?1004l"
)

// EnableFocusReporting asks the terminal to report focus changes.
func EnableFocusReporting(w io.Writer) error {
	_, err := io.WriteString(w, focusOn)
	return err
}

// DisableFocusReporting turns focus reports off again.
func DisableFocusReporting(w io.Writer) error {
	_, err := io.WriteString(w, focusOff)
	return err
}
