package adc

import "time"

// Clock supplies the monotonic time source used for read deadlines and the
// settling wait between triggering a conversion and collecting its result.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the Clock used unless a driver is given another one.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
