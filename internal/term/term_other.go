//go:build !linux && !darwin

package term

// State is a saved terminal configuration.
type State struct{}

// IsTerminal always reports false on this platform; the client falls back
// to line mode.
func IsTerminal(fd int) bool {
	return false
}

// MakeCbreak is not supported on this platform.
func MakeCbreak(fd int) (*State, error) {
	return nil, ErrNotTerminal
}

// Restore is a no-op on this platform.
func Restore(fd int, state *State) error {
	return nil
}
