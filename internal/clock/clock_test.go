package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeAdvanceFiresDueTicks(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewFake(start)

	var count int
	cancel := c.Every(time.Second, func() { count++ })

	c.Advance(500 * time.Millisecond)
	require.Equal(t, 0, count)

	c.Advance(500 * time.Millisecond)
	require.Equal(t, 1, count)

	c.Advance(3 * time.Second)
	require.Equal(t, 4, count)
	require.Equal(t, start.Add(4*time.Second), c.Now())

	cancel()
	c.Advance(10 * time.Second)
	require.Equal(t, 4, count)
	require.Equal(t, 0, c.Active())
}

func TestFakeCallbackMayCancelItself(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	var count int
	var cancel CancelFunc
	cancel = c.Every(time.Second, func() {
		count++
		if count == 2 {
			cancel()
		}
	})

	c.Advance(5 * time.Second)
	require.Equal(t, 2, count)
	cancel()
}

func TestFakeOrdersTicksByDeadline(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	var order []string
	c.Every(2*time.Second, func() { order = append(order, "slow") })
	c.Every(time.Second, func() { order = append(order, "fast") })

	c.Advance(2 * time.Second)
	require.Equal(t, []string{"fast", "slow", "fast"}, order)
}

func TestRealEveryTicksUntilCancelled(t *testing.T) {
	var count atomic.Int32
	cancel := Real{}.Every(5*time.Millisecond, func() { count.Add(1) })

	require.Eventually(t, func() bool { return count.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	cancel()

	settled := count.Load()
	time.Sleep(30 * time.Millisecond)
	require.LessOrEqual(t, count.Load(), settled+1)
}
