package ports

import "time"

// Clock supplies the current time and fires callbacks when deadlines pass.
// This is a driven port (implemented by adapters).
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once d has elapsed. A non-positive d fires as soon
	// as possible.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop cancels the callback. It returns false if the callback already
	// fired or was stopped.
	Stop() bool
}
