package server

import (
	"sync"
	"time"
)

// TickFunc is called by a Scheduler with the time elapsed since the previous
// call. Returning false asks the scheduler to stop calling it.
type TickFunc func(delta time.Duration) bool

// Scheduler calls a TickFunc periodically. Calls must not overlap. The
// returned cancel function stops further calls and is safe to call more
// than once. It does not wait: a call already in flight may still complete
// after cancel returns.
type Scheduler interface {
	Schedule(interval time.Duration, tick TickFunc) (cancel func())
}

// TickerScheduler drives ticks from a time.Ticker on its own goroutine.
type TickerScheduler struct{}

// Schedule implements Scheduler.
func (TickerScheduler) Schedule(interval time.Duration, tick TickFunc) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				delta := now.Sub(last)
				last = now
				if !tick(delta) {
					return
				}
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

// ManualScheduler records the scheduled tick without running it. Hosts that
// own a frame loop, and tests, call Tick themselves.
type ManualScheduler struct {
	mu       sync.Mutex
	interval time.Duration
	tick     TickFunc
}

// Schedule implements Scheduler.
func (m *ManualScheduler) Schedule(interval time.Duration, tick TickFunc) func() {
	m.mu.Lock()
	m.interval = interval
	m.tick = tick
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		m.tick = nil
		m.mu.Unlock()
	}
}

// Interval returns the interval of the last Schedule call.
func (m *ManualScheduler) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Scheduled reports whether a tick is currently scheduled.
func (m *ManualScheduler) Scheduled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick != nil
}

// Advance runs the scheduled tick once with delta. It returns false when
// nothing is scheduled or the tick asked to stop.
func (m *ManualScheduler) Advance(delta time.Duration) bool {
	m.mu.Lock()
	tick := m.tick
	m.mu.Unlock()

	if tick == nil {
		return false
	}
	return tick(delta)
}
