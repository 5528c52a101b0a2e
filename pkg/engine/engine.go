// Package engine owns the cooking timer collection. It serialises every
// mutation, persists after each one, keeps the tick loop running only while
// a timer is counting down, and tells observers when timers complete.
package engine

import (
	"sync"
	"time"

	"github.com/korjavin/kitchentimer/pkg/clock"
	"github.com/korjavin/kitchentimer/pkg/lifecycle"
	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/models"
	"github.com/korjavin/kitchentimer/pkg/persistence"
	"github.com/korjavin/kitchentimer/pkg/scheduler"
	"github.com/korjavin/kitchentimer/pkg/timers"
)

// Persister loads and saves the timer collection. *persistence.Adapter
// implements it.
type Persister interface {
	Load() persistence.Snapshot
	Save(timers []models.Timer) error
}

// Engine is the timer engine
type Engine struct {
	mu         sync.Mutex
	store      *timers.Store
	persister  Persister
	scheduler  *scheduler.Service
	reconciler *lifecycle.Reconciler
	clock      clock.Clock
	logger     *logger.Logger

	observersMu sync.Mutex
	observers   []subscription
	nextSubID   uint64
	// pending holds completions found while loading until FlushPending
	pending []models.CompletionEvent

	closed bool
}

type options struct {
	clock     clock.Clock
	newID     timers.IDFunc
	newTicker scheduler.TickerFunc
	interval  time.Duration
	catchUp   bool
	logger    *logger.Logger
}

// Option configures an Engine
type Option func(*options)

// WithClock sets the clock used for timestamps and suspension accounting
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDFunc sets the timer id generator
func WithIDFunc(f timers.IDFunc) Option {
	return func(o *options) { o.newID = f }
}

// WithTicker sets the ticker factory used by the tick loop
func WithTicker(f scheduler.TickerFunc) Option {
	return func(o *options) { o.newTicker = f }
}

// WithTickInterval sets the tick loop interval
func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithCatchUp controls whether running timers are fast-forwarded by the time
// elapsed since the snapshot was saved
func WithCatchUp(enabled bool) Option {
	return func(o *options) { o.catchUp = enabled }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates an engine and restores the saved collection. persister may be
// nil, in which case nothing is loaded or saved.
func New(persister Persister, opts ...Option) *Engine {
	o := options{
		clock:   clock.Real{},
		catchUp: true,
		logger:  logger.New("engine"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Real{}
	}
	if o.logger == nil {
		o.logger = logger.New("engine")
	}

	e := &Engine{
		store:     timers.NewStore(o.clock, o.newID),
		persister: persister,
		clock:     o.clock,
		logger:    o.logger,
	}
	e.scheduler = scheduler.New(e.Tick,
		scheduler.WithTicker(o.newTicker),
		scheduler.WithInterval(o.interval),
		scheduler.WithLogger(o.logger.With("scheduler")),
	)
	e.reconciler = lifecycle.New(o.clock, e.Reconcile)

	e.load(o.catchUp)
	return e
}

func (e *Engine) load(catchUp bool) {
	if e.persister == nil {
		return
	}
	snap := e.persister.Load()

	e.mu.Lock()
	defer e.mu.Unlock()

	if fixed := e.store.Replace(snap.Timers); fixed > 0 {
		e.logger.Warn("Repaired %d inconsistent timers from saved state", fixed)
	}

	if catchUp && !snap.SavedAt.IsZero() && e.store.HasRunning() {
		elapsed := lifecycle.WholeSeconds(e.clock.Now().Sub(snap.SavedAt))
		if elapsed > 0 {
			completed := e.store.Reconcile(elapsed)
			e.logger.Info("Caught up %ds since last save, %d timers finished meanwhile", elapsed, len(completed))
			e.pending = append(e.pending, e.events(completed)...)
			e.persistLocked()
		}
	}
	e.ensureLocked()
}

// StartTimer starts a countdown for a step, stopping any active timer the
// step already has.
func (e *Engine) StartTimer(stepID, stepTitle, recipeTitle string, seconds int) (models.Timer, error) {
	e.mu.Lock()
	events, settled := e.settleLocked()
	timer, err := e.store.Start(stepID, stepTitle, recipeTitle, seconds)
	if err == nil {
		e.logger.Info("Started timer %s for step %q (%ds)", timer.ID, stepID, seconds)
	}
	if err == nil || settled {
		e.commitLocked()
	}
	e.mu.Unlock()

	e.notify(events)
	if err != nil {
		return models.Timer{}, err
	}
	return timer, nil
}

// PauseTimer pauses a running timer
func (e *Engine) PauseTimer(id string) bool {
	return e.mutate(func() bool { return e.store.Pause(id) })
}

// ResumeTimer resumes a paused timer
func (e *Engine) ResumeTimer(id string) bool {
	return e.mutate(func() bool { return e.store.Resume(id) })
}

// StopTimer stops a timer, keeping its remaining time
func (e *Engine) StopTimer(id string) bool {
	return e.mutate(func() bool { return e.store.Stop(id) })
}

// ResetTimer restores a timer to its full duration, inactive
func (e *Engine) ResetTimer(id string) bool {
	return e.mutate(func() bool { return e.store.Reset(id) })
}

// ClearCompletedTimers removes timers that ran out and returns how many
func (e *Engine) ClearCompletedTimers() int {
	e.mu.Lock()
	events, settled := e.settleLocked()
	removed := e.store.ClearCompleted()
	if removed > 0 || settled {
		e.commitLocked()
	}
	e.mu.Unlock()

	e.notify(events)
	return removed
}

func (e *Engine) mutate(apply func() bool) bool {
	e.mu.Lock()
	events, settled := e.settleLocked()
	ok := apply()
	if ok || settled {
		e.commitLocked()
	}
	e.mu.Unlock()

	e.notify(events)
	return ok
}

// settleLocked charges running timers for the suspension so far before a
// change made while suspended, so a timer started or resumed mid-suspension
// only pays for the time after that change. It reports whether any timer
// moved.
func (e *Engine) settleLocked() ([]models.CompletionEvent, bool) {
	elapsed, ok := e.reconciler.Checkpoint()
	if !ok || elapsed <= 0 || !e.store.HasRunning() {
		return nil, false
	}
	events := e.events(e.store.Reconcile(elapsed))
	e.logger.Info("Settled %ds of suspension, %d timers finished", elapsed, len(events))
	return events, true
}

// GetTimer returns a timer by id
func (e *Engine) GetTimer(id string) (models.Timer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(id)
}

// GetTimerForStep returns the active timer for a step
func (e *Engine) GetTimerForStep(stepID string) (models.Timer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ForStep(stepID)
}

// GetActiveTimers returns every active timer, paused included
func (e *Engine) GetActiveTimers() []models.Timer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Active()
}

// ListTimers returns every timer in creation order
func (e *Engine) ListTimers() []models.Timer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.All()
}

// GetTotalActiveSeconds sums the remaining time of running timers
func (e *Engine) GetTotalActiveSeconds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.TotalActiveSeconds()
}

// Tick advances running timers by one second. It is called by the tick loop
// and does nothing while the process is suspended.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.closed || e.reconciler.Suspended() || !e.store.HasRunning() {
		e.ensureLocked()
		e.mu.Unlock()
		return
	}
	events := e.events(e.store.Tick())
	e.commitLocked()
	e.mu.Unlock()

	e.notify(events)
}

// Reconcile fast-forwards running timers by elapsed whole seconds
func (e *Engine) Reconcile(elapsed int) {
	e.mu.Lock()
	if elapsed <= 0 || !e.store.HasRunning() {
		e.ensureLocked()
		e.mu.Unlock()
		return
	}
	events := e.events(e.store.Reconcile(elapsed))
	e.logger.Info("Reconciled %ds, %d timers finished", elapsed, len(events))
	e.commitLocked()
	e.mu.Unlock()

	e.notify(events)
}

// OnSuspend marks the process as backgrounded and stops the tick loop
func (e *Engine) OnSuspend() {
	e.reconciler.OnSuspend()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLocked()
}

// OnResume reconciles the time spent suspended and restarts ticking
func (e *Engine) OnResume() {
	if _, ok := e.reconciler.OnResume(); !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLocked()
}

// Suspended reports whether the engine is between OnSuspend and OnResume
func (e *Engine) Suspended() bool {
	return e.reconciler.Suspended()
}

// Ticking reports whether the tick loop is running
func (e *Engine) Ticking() bool {
	return e.scheduler.Running()
}

// Subscribe registers an observer and returns a function that removes it
func (e *Engine) Subscribe(o Observer) func() {
	e.observersMu.Lock()
	e.nextSubID++
	id := e.nextSubID
	e.observers = append(e.observers, subscription{id: id, observer: o})
	e.observersMu.Unlock()

	return func() {
		e.observersMu.Lock()
		defer e.observersMu.Unlock()
		for i, sub := range e.observers {
			if sub.id == id {
				e.observers = append(e.observers[:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

// FlushPending hands the completions found while loading saved state to
// every observer subscribed so far and returns how many there were. Call it
// once, after the last Subscribe; later calls find nothing.
func (e *Engine) FlushPending() int {
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	e.notify(pending)
	return len(pending)
}

// Close stops the tick loop and writes a final snapshot
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.scheduler.Stop()
	e.persistLocked()
	e.logger.Info("Timer engine closed")
}

func (e *Engine) commitLocked() {
	e.persistLocked()
	e.ensureLocked()
}

func (e *Engine) persistLocked() {
	if e.persister == nil {
		return
	}
	// Save logs its own failures; the in-memory collection stays authoritative
	_ = e.persister.Save(e.store.All())
}

func (e *Engine) ensureLocked() {
	e.scheduler.Ensure(!e.closed && e.store.HasRunning() && !e.reconciler.Suspended())
}

func (e *Engine) events(completed []models.Timer) []models.CompletionEvent {
	events := make([]models.CompletionEvent, 0, len(completed))
	for _, timer := range completed {
		at := e.clock.Now()
		if timer.CompletedAt != nil {
			at = *timer.CompletedAt
		}
		events = append(events, models.CompletionEvent{
			Timer:       timer,
			StepTitle:   timer.StepTitle,
			RecipeTitle: timer.RecipeTitle,
			At:          at,
		})
		e.logger.Info("Timer %s for step %q completed", timer.ID, timer.StepID)
	}
	return events
}

func (e *Engine) notify(events []models.CompletionEvent) {
	if len(events) == 0 {
		return
	}
	e.observersMu.Lock()
	subs := make([]subscription, len(e.observers))
	copy(subs, e.observers)
	e.observersMu.Unlock()

	for _, event := range events {
		for _, sub := range subs {
			sub.observer.TimerCompleted(event)
		}
	}
}
