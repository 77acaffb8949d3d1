// Package clock provides wall time and a scheduled tick that can be replaced
// by a simulated clock in tests.
package clock

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled tick. It never waits for an in-flight callback
// and is safe to call more than once.
type CancelFunc func()

type Clock interface {
	Now() time.Time
	// Every calls fn once per interval until the returned CancelFunc is called.
	Every(interval time.Duration, fn func()) CancelFunc
}

type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) Every(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
