package ui

import "sync"

// Memory is a Surface that only records what it was asked to show. It backs
// headless sessions and tests.
type Memory struct {
	mu          sync.Mutex
	log         []string
	typers      TypingList
	presence    string
	sendEnabled bool
	clears      int
}

// NewMemory creates an empty Memory surface with sending disabled.
func NewMemory() *Memory {
	return &Memory{}
}

// AppendLog records line.
func (m *Memory) AppendLog(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, line)
}

// AddTyper adds name to the typing list.
func (m *Memory) AddTyper(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typers.Add(name)
}

// RemoveTyper removes name and reports whether it was listed.
func (m *Memory) RemoveTyper(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.typers.Remove(name)
}

// SetPresence records the presence text.
func (m *Memory) SetPresence(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presence = text
}

// SetSendEnabled records whether sending is enabled.
func (m *Memory) SetSendEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendEnabled = enabled
}

// ClearMessage counts a clear of the message input.
func (m *Memory) ClearMessage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
}

// Log returns a copy of the log lines.
func (m *Memory) Log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.log))
	copy(out, m.log)
	return out
}

// Typers returns the typing list in display order.
func (m *Memory) Typers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.typers.Names()
}

// Presence returns the presence text.
func (m *Memory) Presence() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presence
}

// SendEnabled reports whether sending is enabled.
func (m *Memory) SendEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendEnabled
}

// Clears returns how many times the message input was cleared.
func (m *Memory) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}
