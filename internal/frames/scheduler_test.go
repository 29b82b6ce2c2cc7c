package frames

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances a fixed amount per Now call.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestSchedulerStepRunsTickersInOrder(t *testing.T) {
	s := NewScheduler(&fakeClock{step: 16 * time.Millisecond}, 0)

	var order []string
	s.Register(TickerFunc(func(time.Time) { order = append(order, "source") }))
	s.Register(TickerFunc(func(time.Time) { order = append(order, "smooth") }))
	s.Register(TickerFunc(func(time.Time) { order = append(order, "render") }))

	s.Step()
	s.Step()

	assert.Equal(t, []string{"source", "smooth", "render", "source", "smooth", "render"}, order)
}

func TestSchedulerStepPassesMonotonicTime(t *testing.T) {
	s := NewScheduler(&fakeClock{step: 16 * time.Millisecond}, 0)

	var stamps []time.Time
	s.Register(TickerFunc(func(now time.Time) { stamps = append(stamps, now) }))

	for range 5 {
		s.Step()
	}

	for i := 1; i < len(stamps); i++ {
		assert.True(t, stamps[i].After(stamps[i-1]))
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(nil, time.Millisecond)

	ticks := make(chan struct{}, 64)
	s.Register(TickerFunc(func(time.Time) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}))

	s.Start()
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("scheduler never ticked")
	}

	s.Stop()
	// Second stop must be a no-op.
	s.Stop()

	// Drain anything in flight, then verify the loop is quiet.
	for len(ticks) > 0 {
		<-ticks
	}
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, ticks)
}
