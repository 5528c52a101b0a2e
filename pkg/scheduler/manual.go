package scheduler

import (
	"sync"
	"time"
)

// ManualTicker is a Ticker that only fires when told to.
type ManualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

// C returns the tick channel.
func (t *ManualTicker) C() <-chan time.Time {
	return t.ch
}

// Stop marks the ticker stopped.
func (t *ManualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// Stopped reports whether Stop was called.
func (t *ManualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fire delivers one tick and reports whether a loop received it within wait.
func (t *ManualTicker) Fire(wait time.Duration) bool {
	select {
	case t.ch <- time.Now():
		return true
	case <-time.After(wait):
		return false
	}
}

// ManualFactory hands out ManualTickers and remembers them.
type ManualFactory struct {
	mu      sync.Mutex
	tickers []*ManualTicker
}

// New implements TickerFunc.
func (f *ManualFactory) New(time.Duration) Ticker {
	t := &ManualTicker{ch: make(chan time.Time)}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	return t
}

// Count returns how many tickers were created.
func (f *ManualFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

// Last returns the most recently created ticker, or nil.
func (f *ManualFactory) Last() *ManualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tickers) == 0 {
		return nil
	}
	return f.tickers[len(f.tickers)-1]
}
