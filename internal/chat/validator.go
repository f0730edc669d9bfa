package chat

import "unicode/utf16"

// Exclusive upper bounds, counted in UTF-16 code units so that limits agree
// with the browser client sharing the same server.
const (
	MaxNameLength    = 32
	MaxContentLength = 256
)

// Validate reports whether a (trimmed) name and message may be sent.
func Validate(name, content string) bool {
	n, c := Length(name), Length(content)
	return n > 0 && n < MaxNameLength && c > 0 && c < MaxContentLength
}

// Length returns the number of UTF-16 code units needed to encode s.
func Length(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
