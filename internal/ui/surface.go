// Package ui contains the rendering surfaces the chat session draws on: the
// message log, the list of users currently typing, the presence line, the
// send indicator and the message input. Surfaces only render; all decisions
// are made by the session.
package ui

// Surface is the rendering boundary of a chat session.
type Surface interface {
	PresenceDisplay

	// AppendLog adds a line at the bottom of the message log and keeps it in
	// view.
	AppendLog(line string)

	// AddTyper shows name in the typing list. Duplicates are kept.
	AddTyper(name string)

	// RemoveTyper hides the first entry equal to name and reports whether one
	// was found.
	RemoveTyper(name string) bool

	// SetSendEnabled enables or disables sending.
	SetSendEnabled(enabled bool)

	// ClearMessage empties the message input.
	ClearMessage()
}

// PresenceDisplay is the single text node showing the user count.
type PresenceDisplay interface {
	SetPresence(text string)
}
