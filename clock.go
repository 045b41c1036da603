package fetchstore

import "time"

// Clock abstracts the timer used between retry attempts.
//
// The default clock uses the time package. Tests substitute a clock that
// fires immediately and records the requested delays.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
