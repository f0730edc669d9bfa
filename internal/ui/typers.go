package ui

// TypingList is the ordered list of users shown as typing. It behaves like
// an append-only log with remove-first-match, not like a set: a user who
// starts twice without stopping appears twice.
type TypingList struct {
	names []string
}

// Add appends name.
func (l *TypingList) Add(name string) {
	l.names = append(l.names, name)
}

// Remove deletes the first entry equal to name. Unknown names are a no-op.
func (l *TypingList) Remove(name string) bool {
	for i, n := range l.names {
		if n == name {
			l.names = append(l.names[:i], l.names[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns a copy of the entries in display order.
func (l *TypingList) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Len returns the number of entries.
func (l *TypingList) Len() int {
	return len(l.names)
}
