package timer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Resolution is the frequency at which the clock is refreshed. It's precise enough
// for idle deadlines, which are measured in seconds.
const Resolution = 500 * time.Millisecond

var (
	millis atomic.Int64
	once   sync.Once
)

// Now returns the wall-clock time with Resolution precision. The clock starts ticking
// on the first call.
func Now() time.Time {
	once.Do(start)
	return time.UnixMilli(millis.Load())
}

// Deadline returns the moment timeout from now.
func Deadline(timeout time.Duration) time.Time {
	return Now().Add(timeout)
}

func start() {
	millis.Store(time.Now().UnixMilli())

	go func() {
		ticker := time.NewTicker(Resolution)
		for now := range ticker.C {
			millis.Store(now.UnixMilli())
		}
	}()
}
