package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/korjavin/kitchentimer/pkg/clock"
	"github.com/korjavin/kitchentimer/pkg/models"
	"github.com/korjavin/kitchentimer/pkg/persistence"
	"github.com/korjavin/kitchentimer/pkg/scheduler"
	"github.com/korjavin/kitchentimer/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

// recorder collects completion events.
type recorder struct {
	mu     sync.Mutex
	events []models.CompletionEvent
}

func (r *recorder) TimerCompleted(event models.CompletionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// memPersister counts saves and keeps the last one.
type memPersister struct {
	mu    sync.Mutex
	snap  persistence.Snapshot
	saves int
	clock clock.Clock
}

func (m *memPersister) Load() persistence.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *memPersister) Save(timers []models.Timer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.snap = persistence.Snapshot{Version: persistence.SnapshotVersion, SavedAt: m.clock.Now(), Timers: timers}
	return nil
}

func (m *memPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type harness struct {
	engine    *Engine
	clock     *clock.Manual
	tickers   *scheduler.ManualFactory
	persister *memPersister
	observed  *recorder
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	c := clock.NewManual(epoch)
	h := &harness{
		clock:     c,
		tickers:   &scheduler.ManualFactory{},
		persister: &memPersister{clock: c},
		observed:  &recorder{},
	}
	seq := 0
	base := []Option{
		WithClock(c),
		WithTicker(h.tickers.New),
		WithIDFunc(func() string { seq++; return fmt.Sprintf("timer-%d", seq) }),
	}
	h.engine = New(h.persister, append(base, opts...)...)
	h.engine.Subscribe(h.observed)
	t.Cleanup(h.engine.Close)
	return h
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(time.Second)
		h.engine.Tick()
	}
}

func checkInvariants(t *testing.T, list []models.Timer) {
	t.Helper()
	activeByStep := map[string]int{}
	for _, timer := range list {
		assert.GreaterOrEqual(t, timer.TimeRemaining, 0, timer.ID)
		assert.LessOrEqual(t, timer.TimeRemaining, timer.Duration, timer.ID)
		if timer.IsPaused {
			assert.True(t, timer.IsActive, "paused timer %s must be active", timer.ID)
		}
		if timer.IsActive {
			activeByStep[timer.StepID]++
		}
	}
	for step, n := range activeByStep {
		assert.LessOrEqual(t, n, 1, "step %s has %d active timers", step, n)
	}
}

func TestTimerRunsToCompletion(t *testing.T) {
	h := newHarness(t)

	timer, err := h.engine.StartTimer("s1", "Boil", "Pasta", 60)
	require.NoError(t, err)
	assert.True(t, h.engine.Ticking())

	h.tick(60)

	got, ok := h.engine.GetTimer(timer.ID)
	require.True(t, ok)
	assert.False(t, got.IsActive)
	assert.Equal(t, 0, got.TimeRemaining)
	require.NotNil(t, got.CompletedAt)

	require.Equal(t, 1, h.observed.Len())
	event := h.observed.events[0]
	assert.Equal(t, timer.ID, event.Timer.ID)
	assert.Equal(t, "Boil", event.StepTitle)
	assert.Equal(t, "Pasta", event.RecipeTitle)
	assert.True(t, event.At.Equal(*got.CompletedAt))

	assert.False(t, h.engine.Ticking(), "tick loop stops once nothing is running")

	h.tick(5)
	assert.Equal(t, 1, h.observed.Len(), "a completed timer never fires again")
	checkInvariants(t, h.engine.ListTimers())
}

func TestPausedTimerIgnoresBackgroundTime(t *testing.T) {
	h := newHarness(t)

	timer, err := h.engine.StartTimer("s1", "Boil", "Pasta", 120)
	require.NoError(t, err)
	require.True(t, h.engine.PauseTimer(timer.ID))
	assert.False(t, h.engine.Ticking())

	h.engine.OnSuspend()
	h.clock.Advance(300 * time.Second)
	h.engine.OnResume()

	got, _ := h.engine.GetTimer(timer.ID)
	assert.Equal(t, 120, got.TimeRemaining)
	assert.True(t, got.IsPaused)
	assert.Equal(t, 0, h.observed.Len())
}

func TestBackgroundCompletionFiresOnce(t *testing.T) {
	h := newHarness(t)

	timer, err := h.engine.StartTimer("s1", "Boil", "Pasta", 30)
	require.NoError(t, err)

	h.engine.OnSuspend()
	assert.True(t, h.engine.Suspended())
	assert.False(t, h.engine.Ticking(), "tick loop stops while suspended")

	h.clock.Advance(45 * time.Second)
	h.engine.OnResume()

	got, _ := h.engine.GetTimer(timer.ID)
	assert.Equal(t, 0, got.TimeRemaining)
	assert.False(t, got.IsActive)
	assert.Equal(t, 1, h.observed.Len())

	h.engine.Reconcile(45)
	assert.Equal(t, 1, h.observed.Len())
}

func TestTicksSuppressedWhileSuspended(t *testing.T) {
	h := newHarness(t)

	timer, err := h.engine.StartTimer("s1", "Boil", "Pasta", 100)
	require.NoError(t, err)

	h.engine.OnSuspend()
	h.tick(10)
	h.engine.OnSuspend()
	h.engine.OnResume()

	got, _ := h.engine.GetTimer(timer.ID)
	assert.Equal(t, 90, got.TimeRemaining, "ten seconds counted once, not twice")
	assert.True(t, h.engine.Ticking())
}

func TestStartDuringSuspensionPaysOnlyForItsOwnTime(t *testing.T) {
	h := newHarness(t)

	long, err := h.engine.StartTimer("s1", "Bake", "Bread", 600)
	require.NoError(t, err)

	h.engine.OnSuspend()
	h.clock.Advance(290 * time.Second)
	short, err := h.engine.StartTimer("s2", "Boil", "Pasta", 60)
	require.NoError(t, err)
	assert.False(t, h.engine.Ticking(), "still suspended")
	h.clock.Advance(10 * time.Second)
	h.engine.OnResume()

	got, _ := h.engine.GetTimer(short.ID)
	assert.Equal(t, 50, got.TimeRemaining)
	assert.True(t, got.IsActive)
	got, _ = h.engine.GetTimer(long.ID)
	assert.Equal(t, 300, got.TimeRemaining, "a timer running since before the suspension pays for all of it")
	assert.Equal(t, 0, h.observed.Len())
	checkInvariants(t, h.engine.ListTimers())
}

func TestResumeDuringSuspensionPaysOnlyForItsOwnTime(t *testing.T) {
	h := newHarness(t)

	timer, err := h.engine.StartTimer("s1", "Rest", "Bread", 120)
	require.NoError(t, err)
	require.True(t, h.engine.PauseTimer(timer.ID))

	h.engine.OnSuspend()
	h.clock.Advance(290 * time.Second)
	require.True(t, h.engine.ResumeTimer(timer.ID))
	h.clock.Advance(10 * time.Second)
	h.engine.OnResume()

	got, _ := h.engine.GetTimer(timer.ID)
	assert.Equal(t, 110, got.TimeRemaining)
	assert.True(t, got.Running())
	assert.Equal(t, 0, h.observed.Len())
}

func TestPauseDuringSuspensionChargesTimeSoFar(t *testing.T) {
	h := newHarness(t)

	timer, err := h.engine.StartTimer("s1", "Boil", "Pasta", 30)
	require.NoError(t, err)
	other, err := h.engine.StartTimer("s2", "Bake", "Pasta", 600)
	require.NoError(t, err)

	h.engine.OnSuspend()
	h.clock.Advance(45 * time.Second)
	require.True(t, h.engine.PauseTimer(other.ID))
	require.Equal(t, 1, h.observed.Len(), "a timer that ran out before the change completes then")
	assert.Equal(t, timer.ID, h.observed.events[0].Timer.ID)

	h.clock.Advance(100 * time.Second)
	h.engine.OnResume()

	got, _ := h.engine.GetTimer(other.ID)
	assert.Equal(t, 555, got.TimeRemaining)
	assert.True(t, got.IsPaused)
	assert.Equal(t, 1, h.observed.Len())
}

func TestSettledSuspensionIsSavedEvenWhenChangeFails(t *testing.T) {
	h := newHarness(t)

	timer, err := h.engine.StartTimer("s1", "Bake", "Bread", 600)
	require.NoError(t, err)
	saves := h.persister.Saves()

	h.engine.OnSuspend()
	h.clock.Advance(60 * time.Second)
	assert.False(t, h.engine.PauseTimer("nope"))
	assert.Equal(t, saves+1, h.persister.Saves())
	assert.Equal(t, 540, h.persister.Load().Timers[0].TimeRemaining)

	assert.False(t, h.engine.ResumeTimer(timer.ID), "running timers cannot be resumed")
	assert.Equal(t, saves+1, h.persister.Saves(), "nothing new to settle")
}

func TestDuplicateStartEvictsPrevious(t *testing.T) {
	h := newHarness(t)

	first, err := h.engine.StartTimer("s1", "Boil", "Pasta", 60)
	require.NoError(t, err)
	h.tick(10)
	second, err := h.engine.StartTimer("s1", "Boil", "Pasta", 90)
	require.NoError(t, err)

	old, _ := h.engine.GetTimer(first.ID)
	assert.False(t, old.IsActive)
	assert.Equal(t, 50, old.TimeRemaining)

	current, ok := h.engine.GetTimerForStep("s1")
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)
	assert.Len(t, h.engine.GetActiveTimers(), 1)
	checkInvariants(t, h.engine.ListTimers())
}

func TestInvalidDurationChangesNothing(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.StartTimer("s1", "Boil", "Pasta", 0)
	assert.Error(t, err)
	assert.Empty(t, h.engine.ListTimers())
	assert.Equal(t, 0, h.persister.Saves())
	assert.False(t, h.engine.Ticking())
}

func TestUnknownIDsAreNoops(t *testing.T) {
	h := newHarness(t)

	assert.False(t, h.engine.PauseTimer("nope"))
	assert.False(t, h.engine.ResumeTimer("nope"))
	assert.False(t, h.engine.StopTimer("nope"))
	assert.False(t, h.engine.ResetTimer("nope"))
	_, ok := h.engine.GetTimer("nope")
	assert.False(t, ok)
	assert.Equal(t, 0, h.persister.Saves())
}

func TestEveryMutationPersists(t *testing.T) {
	h := newHarness(t)

	timer, _ := h.engine.StartTimer("s1", "Boil", "Pasta", 60)
	assert.Equal(t, 1, h.persister.Saves())

	h.engine.PauseTimer(timer.ID)
	h.engine.ResumeTimer(timer.ID)
	h.tick(2)
	h.engine.StopTimer(timer.ID)
	h.engine.ResetTimer(timer.ID)
	assert.Equal(t, 7, h.persister.Saves())

	saved := h.persister.Load().Timers
	require.Len(t, saved, 1)
	assert.Equal(t, 60, saved[0].TimeRemaining)
	assert.False(t, saved[0].IsActive)
}

func TestResetIsIdempotent(t *testing.T) {
	h := newHarness(t)

	timer, _ := h.engine.StartTimer("s1", "Boil", "Pasta", 60)
	h.tick(60)
	require.True(t, h.engine.ResetTimer(timer.ID))
	once, _ := h.engine.GetTimer(timer.ID)
	require.True(t, h.engine.ResetTimer(timer.ID))
	twice, _ := h.engine.GetTimer(timer.ID)

	assert.Equal(t, once, twice)
	assert.Equal(t, 60, twice.TimeRemaining)
	assert.Nil(t, twice.CompletedAt)
}

func TestTotalsAndClear(t *testing.T) {
	h := newHarness(t)

	a, _ := h.engine.StartTimer("s1", "Boil", "Pasta", 30)
	b, _ := h.engine.StartTimer("s2", "Bake", "Pasta", 100)
	c, _ := h.engine.StartTimer("s3", "Rest", "Pasta", 50)
	h.engine.PauseTimer(c.ID)
	assert.Equal(t, 130, h.engine.GetTotalActiveSeconds())

	h.tick(30)
	assert.Equal(t, 70, h.engine.GetTotalActiveSeconds())

	assert.Equal(t, 1, h.engine.ClearCompletedTimers())
	_, ok := h.engine.GetTimer(a.ID)
	assert.False(t, ok)
	_, ok = h.engine.GetTimer(b.ID)
	assert.True(t, ok)
	assert.Equal(t, 0, h.engine.ClearCompletedTimers())
}

func TestCompletionOrderWithinOneTick(t *testing.T) {
	h := newHarness(t)

	h.engine.StartTimer("s2", "Second", "R", 5)
	h.engine.StartTimer("s1", "First", "R", 5)
	h.tick(5)

	require.Equal(t, 2, h.observed.Len())
	assert.Equal(t, "Second", h.observed.events[0].StepTitle)
	assert.Equal(t, "First", h.observed.events[1].StepTitle)
}

func TestUnsubscribe(t *testing.T) {
	h := newHarness(t)
	extra := &recorder{}
	unsubscribe := h.engine.Subscribe(ObserverFunc(extra.TimerCompleted))

	h.engine.StartTimer("s1", "Boil", "Pasta", 1)
	h.tick(1)
	assert.Equal(t, 1, extra.Len())

	unsubscribe()
	h.engine.StartTimer("s2", "Boil", "Pasta", 1)
	h.tick(1)
	assert.Equal(t, 1, extra.Len())
	assert.Equal(t, 2, h.observed.Len())
}

func TestObserverMayCallEngine(t *testing.T) {
	h := newHarness(t)
	var restarted models.Timer
	h.engine.Subscribe(ObserverFunc(func(event models.CompletionEvent) {
		restarted, _ = h.engine.StartTimer(event.Timer.StepID+"-next", "Next", event.RecipeTitle, 10)
	}))

	h.engine.StartTimer("s1", "Boil", "Pasta", 1)
	h.tick(1)

	require.NotEmpty(t, restarted.ID)
	assert.True(t, h.engine.Ticking())
}

func TestSchedulerLoopDrivesTicks(t *testing.T) {
	h := newHarness(t)

	timer, _ := h.engine.StartTimer("s1", "Boil", "Pasta", 2)
	ticker := h.tickers.Last()
	require.NotNil(t, ticker)

	require.True(t, ticker.Fire(time.Second))
	require.True(t, ticker.Fire(time.Second))

	assert.Eventually(t, func() bool {
		got, _ := h.engine.GetTimer(timer.ID)
		return !got.IsActive && got.TimeRemaining == 0
	}, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return !h.engine.Ticking() }, time.Second, time.Millisecond)
	assert.Eventually(t, ticker.Stopped, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.observed.Len())
}

func TestCatchUpOnLoad(t *testing.T) {
	c := clock.NewManual(epoch)
	p := &memPersister{clock: c}
	first := New(p, WithClock(c), WithTicker((&scheduler.ManualFactory{}).New))
	short, _ := first.StartTimer("s1", "Boil", "Pasta", 30)
	long, _ := first.StartTimer("s2", "Bake", "Pasta", 600)
	paused, _ := first.StartTimer("s3", "Rest", "Pasta", 60)
	first.PauseTimer(paused.ID)
	first.Close()

	c.Advance(100*time.Second + 500*time.Millisecond)

	tickers := &scheduler.ManualFactory{}
	second := New(p, WithClock(c), WithTicker(tickers.New))
	defer second.Close()

	got, _ := second.GetTimer(short.ID)
	assert.False(t, got.IsActive)
	assert.Equal(t, 0, got.TimeRemaining)
	got, _ = second.GetTimer(long.ID)
	assert.Equal(t, 500, got.TimeRemaining)
	got, _ = second.GetTimer(paused.ID)
	assert.Equal(t, 60, got.TimeRemaining)
	assert.True(t, second.Ticking())

	notifier, counter := &recorder{}, &recorder{}
	second.Subscribe(notifier)
	second.Subscribe(counter)
	assert.Equal(t, 0, notifier.Len(), "nothing is delivered before the flush")

	assert.Equal(t, 1, second.FlushPending())
	for _, obs := range []*recorder{notifier, counter} {
		require.Equal(t, 1, obs.Len(), "every observer sees completions found on load")
		assert.Equal(t, short.ID, obs.events[0].Timer.ID)
	}

	late := &recorder{}
	second.Subscribe(late)
	assert.Equal(t, 0, second.FlushPending())
	assert.Equal(t, 0, late.Len())
	assert.Equal(t, 1, notifier.Len())
}

func TestCatchUpDisabled(t *testing.T) {
	c := clock.NewManual(epoch)
	p := &memPersister{clock: c}
	first := New(p, WithClock(c), WithTicker((&scheduler.ManualFactory{}).New))
	timer, _ := first.StartTimer("s1", "Boil", "Pasta", 30)
	first.Close()

	c.Advance(time.Hour)
	second := New(p, WithClock(c), WithTicker((&scheduler.ManualFactory{}).New), WithCatchUp(false))
	defer second.Close()

	got, _ := second.GetTimer(timer.ID)
	assert.Equal(t, 30, got.TimeRemaining)
	assert.True(t, got.IsActive)
}

func TestRestoreThroughBadger(t *testing.T) {
	store, err := storage.NewInMemory()
	require.NoError(t, err)
	defer store.Close()

	c := clock.NewManual(epoch)
	for _, codec := range []persistence.Codec{persistence.JSON, persistence.CBOR} {
		t.Run(codec.Name(), func(t *testing.T) {
			adapter := persistence.New(store, persistence.WithCodec(codec), persistence.WithClock(c), persistence.WithKey("timers-"+codec.Name()))

			first := New(adapter, WithClock(c), WithTicker((&scheduler.ManualFactory{}).New))
			timer, err := first.StartTimer("s1", "Boil", "Pasta", 300)
			require.NoError(t, err)
			first.Tick()
			first.PauseTimer(timer.ID)
			first.Close()

			second := New(adapter, WithClock(c), WithTicker((&scheduler.ManualFactory{}).New))
			defer second.Close()

			got, ok := second.GetTimerForStep("s1")
			require.True(t, ok)
			assert.Equal(t, timer.ID, got.ID)
			assert.Equal(t, 299, got.TimeRemaining)
			assert.True(t, got.IsPaused)
			assert.True(t, got.CreatedAt.Equal(timer.CreatedAt))
			assert.False(t, second.Ticking())
		})
	}
}

func TestNoPersister(t *testing.T) {
	e := New(nil, WithTicker((&scheduler.ManualFactory{}).New))
	defer e.Close()

	timer, err := e.StartTimer("s1", "Boil", "Pasta", 10)
	require.NoError(t, err)
	assert.True(t, e.PauseTimer(timer.ID))
}
