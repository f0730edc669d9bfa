package term

import (
	"bufio"
	"io"
	"unicode"
	"unicode/utf8"
)

// KeyKind identifies a decoded key event.
type KeyKind int

const (
	KeyRune KeyKind = iota
	KeyBackspace
	KeyEnter
	KeyFocusIn
	KeyFocusOut
	KeyInterrupt
	KeyRedraw
)

// String returns the string representation of KeyKind.
func (k KeyKind) String() string {
	switch k {
	case KeyRune:
		return "rune"
	case KeyBackspace:
		return "backspace"
	case KeyEnter:
		return "enter"
	case KeyFocusIn:
		return "focus_in"
	case KeyFocusOut:
		return "focus_out"
	case KeyInterrupt:
		return "interrupt"
	case KeyRedraw:
		return "redraw"
	default:
		return "unknown"
	}
}

// Key is one decoded key event. Rune is set for KeyRune only.
type Key struct {
	Kind KeyKind
	Rune rune
}

// Reader decodes a raw terminal byte stream into key events.
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadKey blocks until the next key event. Control bytes and escape
// sequences that carry no meaning for the chat input are skipped.
func (r *Reader) ReadKey() (Key, error) {
	for {
		c, size, err := r.br.ReadRune()
		if err != nil {
			return Key{}, err
		}

		switch {
		case c == '\r' || c == '\n':
			return Key{Kind: KeyEnter}, nil
		case c == 0x7f || c == 0x08:
			return Key{Kind: KeyBackspace}, nil
		case c == 0x03 || c == 0x04:
			return Key{Kind: KeyInterrupt}, nil
		case c == 0x0c:
			return Key{Kind: KeyRedraw}, nil
		case c == 0x1b:
			key, ok, err := r.readEscape()
			if err != nil {
				return Key{}, err
			}
			if ok {
				return key, nil
			}
		case c == utf8.RuneError && size == 1:
			// invalid UTF-8
		case c == '\t':
			return Key{Kind: KeyRune, Rune: ' '}, nil
		case unicode.IsControl(c):
		default:
			return Key{Kind: KeyRune, Rune: c}, nil
		}
	}
}

// readEscape consumes the rest of an escape sequence. It reports ok for the
// focus reports and swallows everything else.
func (r *Reader) readEscape() (Key, bool, error) {
	// A lone ESC keypress arrives without a follow-up byte.
	if r.br.Buffered() == 0 {
		return Key{}, false, nil
	}

	b, err := r.br.ReadByte()
	if err != nil {
		return Key{}, false, err
	}

	switch b {
	case '[':
		// CSI: parameter and intermediate bytes, then one final byte.
		var params []byte
		for {
			c, err := r.br.ReadByte()
			if err != nil {
				return Key{}, false, err
			}
			if c >= 0x40 && c <= 0x7e {
				if len(params) == 0 {
					switch c {
					case 'I':
						return Key{Kind: KeyFocusIn}, true, nil
					case 'O':
						return Key{Kind: KeyFocusOut}, true, nil
					}
				}
				return Key{}, false, nil
			}
			params = append(params, c)
		}
	case 'O':
		// SS3 function keys carry exactly one more byte.
		if _, err := r.br.ReadByte(); err != nil {
			return Key{}, false, err
		}
	}
	return Key{}, false, nil
}
