// Package frames provides the shared animation-frame scheduler. A single
// tick source drives ordered updates to every active component, so signal
// acquisition always happens before smoothing and smoothing before
// rendering within one frame.
package frames

import (
	"sync"
	"time"
)

// DefaultInterval is the frame interval for live rendering (~60fps).
const DefaultInterval = 16 * time.Millisecond

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Ticker is a component updated once per frame.
type Ticker interface {
	Tick(now time.Time)
}

// TickerFunc adapts a function to the Ticker interface.
type TickerFunc func(now time.Time)

// Tick calls the wrapped function.
func (f TickerFunc) Tick(now time.Time) { f(now) }

// Scheduler drives registered tickers from a single frame loop. Tickers run
// in registration order on one goroutine; there is no concurrency between
// frame callbacks. It is safe to start and stop from any goroutine.
type Scheduler struct {
	clock    Clock
	interval time.Duration

	mu      sync.Mutex
	tickers []Ticker
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler returns a stopped scheduler using the given clock and frame
// interval. A nil clock selects the system clock; a non-positive interval
// selects DefaultInterval.
func NewScheduler(clock Clock, interval time.Duration) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{clock: clock, interval: interval}
}

// Register appends a ticker to the per-frame update order.
func (s *Scheduler) Register(t Ticker) {
	s.mu.Lock()
	s.tickers = append(s.tickers, t)
	s.mu.Unlock()
}

// Step runs one frame immediately using the scheduler's clock. Tests drive
// the pipeline with Step instead of the live loop.
func (s *Scheduler) Step() {
	s.tick(s.clock.Now())
}

func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	tickers := s.tickers
	s.mu.Unlock()

	for _, t := range tickers {
		t.Tick(now)
	}
}

// Start launches the frame loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stop, s.done)
}

func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(s.clock.Now())
		case <-stop:
			return
		}
	}
}

// Stop halts the frame loop and waits for the in-flight frame to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
