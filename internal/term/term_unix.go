//go:build linux || darwin

package term

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// State is a saved terminal configuration.
type State struct {
	termios unix.Termios
}

// IsTerminal reports whether fd refers to a terminal.
func IsTerminal(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	return err == nil
}

// MakeCbreak disables echo and line buffering on fd so that keys arrive one
// at a time, and returns the previous state for Restore. Signal keys are
// delivered as bytes as well; the caller handles Ctrl-C itself.
func MakeCbreak(fd int) (*State, error) {
	termios, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return nil, ErrNotTerminal
	}
	old := &State{termios: *termios}

	termios.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, termios); err != nil {
		return nil, fmt.Errorf("term: set cbreak: %w", err)
	}
	return old, nil
}

// Restore returns fd to a state saved by MakeCbreak.
func Restore(fd int, state *State) error {
	if state == nil {
		return nil
	}
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, &state.termios); err != nil {
		return fmt.Errorf("term: restore: %w", err)
	}
	return nil
}
