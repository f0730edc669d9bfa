package chat

import "time"

// TimeLayout matches the en-US output of Date.toLocaleTimeString, the format
// other clients in the room put on the wire.
const TimeLayout = "3:04:05 PM"

// FormatTime renders t in local time using TimeLayout.
func FormatTime(t time.Time) string {
	return t.Local().Format(TimeLayout)
}
