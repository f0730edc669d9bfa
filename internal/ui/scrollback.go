package ui

import "sync"

// DefaultScrollback is the number of log lines kept for redraws.
const DefaultScrollback = 500

// Scrollback stores the last N log lines. It is goroutine-safe and uses a
// ring buffer internally.
type Scrollback struct {
	mu    sync.RWMutex
	items []string
	pos   int
	count int
}

// NewScrollback creates an empty Scrollback holding up to size lines. A
// non-positive size falls back to DefaultScrollback.
func NewScrollback(size int) *Scrollback {
	if size <= 0 {
		size = DefaultScrollback
	}
	return &Scrollback{items: make([]string, size)}
}

// Add appends a line. If the buffer is full, the oldest line is overwritten.
func (s *Scrollback) Add(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[s.pos] = line
	s.pos = (s.pos + 1) % len(s.items)
	if s.count < len(s.items) {
		s.count++
	}
}

// Lines returns the retained lines oldest first. It never returns nil.
func (s *Scrollback) Lines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := len(s.items)
	result := make([]string, s.count)
	// The oldest line is at position (pos - count) mod size.
	start := (s.pos - s.count + size) % size
	for i := 0; i < s.count; i++ {
		result[i] = s.items[(start+i)%size]
	}
	return result
}

// Len returns the number of retained lines.
func (s *Scrollback) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
