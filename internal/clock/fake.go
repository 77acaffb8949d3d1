package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a simulated clock. Scheduled callbacks run synchronously inside
// Advance, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]*fakeTimer
}

type fakeTimer struct {
	id       int
	interval time.Duration
	next     time.Time
	fn       func()
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start, timers: map[int]*fakeTimer{}}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Every(interval time.Duration, fn func()) CancelFunc {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.timers[id] = &fakeTimer{id: id, interval: interval, next: f.now.Add(interval), fn: fn}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.timers, id)
	}
}

// Active reports how many scheduled ticks have not been cancelled.
func (f *Fake) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// Advance moves the clock forward by d and fires every tick that falls due.
// Callbacks run without the clock's lock held, so they may cancel ticks.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		timer := f.earliestDue(target)
		if timer == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = timer.next
		timer.next = timer.next.Add(timer.interval)
		fn := timer.fn
		f.mu.Unlock()

		fn()
	}
}

func (f *Fake) earliestDue(target time.Time) *fakeTimer {
	due := make([]*fakeTimer, 0, len(f.timers))
	for _, timer := range f.timers {
		if !timer.next.After(target) {
			due = append(due, timer)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].id < due[j].id
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}
