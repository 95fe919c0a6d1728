package application

import "time"

// Clock lets tests pin job ids and file names
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
