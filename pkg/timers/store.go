// Package timers holds the authoritative collection of cooking timers and the
// transitions between their states.
//
// Store is not safe for concurrent use. The engine package owns a single Store
// and serialises every call behind its own mutex.
package timers

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/korjavin/kitchentimer/pkg/clock"
	"github.com/korjavin/kitchentimer/pkg/models"
)

// ErrInvalidDuration is returned by Start for non-positive durations.
var ErrInvalidDuration = errors.New("timer duration must be positive")

// IDFunc generates timer identifiers.
type IDFunc func() string

// NewID returns a random timer identifier.
func NewID() string {
	return "timer-" + uuid.NewString()
}

// Store is the in-memory timer collection.
type Store struct {
	timers []*models.Timer
	clock  clock.Clock
	newID  IDFunc
}

// NewStore creates an empty store. A nil clock uses the system clock and a
// nil id func uses NewID.
func NewStore(c clock.Clock, newID IDFunc) *Store {
	if c == nil {
		c = clock.Real{}
	}
	if newID == nil {
		newID = NewID
	}
	return &Store{clock: c, newID: newID}
}

// Start creates a running timer for a step. Any active timer already bound to
// the step is stopped first so at most one active timer exists per step.
func (s *Store) Start(stepID, stepTitle, recipeTitle string, seconds int) (models.Timer, error) {
	if seconds <= 0 {
		return models.Timer{}, ErrInvalidDuration
	}

	if existing := s.activeForStep(stepID); existing != nil {
		stop(existing)
	}

	timer := &models.Timer{
		ID:            s.newID(),
		StepID:        stepID,
		StepTitle:     stepTitle,
		RecipeTitle:   recipeTitle,
		Duration:      seconds,
		TimeRemaining: seconds,
		IsActive:      true,
		CreatedAt:     s.clock.Now(),
	}
	s.timers = append(s.timers, timer)
	return timer.Clone(), nil
}

// Pause freezes a running timer.
func (s *Store) Pause(id string) bool {
	timer := s.find(id)
	if timer == nil || !timer.IsActive || timer.IsPaused {
		return false
	}
	timer.IsPaused = true
	return true
}

// Resume restarts a paused timer.
func (s *Store) Resume(id string) bool {
	timer := s.find(id)
	if timer == nil || !timer.IsActive || !timer.IsPaused {
		return false
	}
	timer.IsPaused = false
	return true
}

// Stop deactivates a timer, keeping its remaining time for display.
func (s *Store) Stop(id string) bool {
	timer := s.find(id)
	if timer == nil || !timer.IsActive {
		return false
	}
	stop(timer)
	return true
}

// Reset returns a timer to its full duration, inactive. A new Start is needed
// to count again.
func (s *Store) Reset(id string) bool {
	timer := s.find(id)
	if timer == nil {
		return false
	}
	timer.TimeRemaining = timer.Duration
	timer.IsActive = false
	timer.IsPaused = false
	timer.CompletedAt = nil
	return true
}

// Tick advances every running timer by one second and returns the timers that
// reached zero during this pass, in collection order.
func (s *Store) Tick() []models.Timer {
	return s.advance(1)
}

// Reconcile advances every running timer by elapsed seconds at once. A timer
// that crosses zero completes exactly once however far past zero it went.
func (s *Store) Reconcile(elapsed int) []models.Timer {
	if elapsed <= 0 {
		return nil
	}
	return s.advance(elapsed)
}

func (s *Store) advance(seconds int) []models.Timer {
	var completed []models.Timer
	now := s.clock.Now()
	for _, timer := range s.timers {
		if !timer.Running() || timer.TimeRemaining <= 0 {
			continue
		}

		previous := timer.TimeRemaining
		timer.TimeRemaining = max(0, previous-seconds)
		if timer.TimeRemaining == 0 && previous > 0 {
			timer.IsActive = false
			completedAt := now
			timer.CompletedAt = &completedAt
			completed = append(completed, timer.Clone())
		}
	}
	return completed
}

// Get returns the timer with the given id.
func (s *Store) Get(id string) (models.Timer, bool) {
	timer := s.find(id)
	if timer == nil {
		return models.Timer{}, false
	}
	return timer.Clone(), true
}

// ForStep returns the active timer bound to a step, if any.
func (s *Store) ForStep(stepID string) (models.Timer, bool) {
	timer := s.activeForStep(stepID)
	if timer == nil {
		return models.Timer{}, false
	}
	return timer.Clone(), true
}

// Active returns all active timers, paused ones included.
func (s *Store) Active() []models.Timer {
	return s.filter(func(t *models.Timer) bool { return t.IsActive })
}

// All returns every timer in creation order.
func (s *Store) All() []models.Timer {
	return s.filter(func(*models.Timer) bool { return true })
}

// TotalActiveSeconds sums the remaining time of running timers.
func (s *Store) TotalActiveSeconds() int {
	total := 0
	for _, timer := range s.timers {
		if timer.Running() {
			total += timer.TimeRemaining
		}
	}
	return total
}

// HasRunning reports whether any timer is counting down.
func (s *Store) HasRunning() bool {
	for _, timer := range s.timers {
		if timer.Running() {
			return true
		}
	}
	return false
}

// ClearCompleted removes timers that ran out and returns how many were
// removed. Timers stopped early keep their place.
func (s *Store) ClearCompleted() int {
	kept := s.timers[:0]
	removed := 0
	for _, timer := range s.timers {
		if timer.Completed() {
			removed++
			continue
		}
		kept = append(kept, timer)
	}
	for i := len(kept); i < len(s.timers); i++ {
		s.timers[i] = nil
	}
	s.timers = kept
	return removed
}

// Replace installs a previously persisted collection. Records are normalised
// so the store invariants hold even if the stored data does not satisfy them;
// the number of records that needed fixing is returned.
func (s *Store) Replace(loaded []models.Timer) int {
	fixed := 0
	timers := make([]*models.Timer, 0, len(loaded))
	for _, t := range loaded {
		timer := t.Clone()
		if normalise(&timer) {
			fixed++
		}
		timers = append(timers, &timer)
	}

	// Keep only the newest active timer per step.
	sorted := make([]*models.Timer, len(timers))
	copy(sorted, timers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	activeSteps := make(map[string]struct{})
	for _, timer := range sorted {
		if !timer.IsActive {
			continue
		}
		if _, ok := activeSteps[timer.StepID]; ok {
			stop(timer)
			fixed++
			continue
		}
		activeSteps[timer.StepID] = struct{}{}
	}

	s.timers = timers
	return fixed
}

func normalise(timer *models.Timer) bool {
	changed := false
	if timer.Duration < 0 {
		timer.Duration = 0
		changed = true
	}
	if timer.TimeRemaining < 0 {
		timer.TimeRemaining = 0
		changed = true
	}
	if timer.TimeRemaining > timer.Duration {
		timer.TimeRemaining = timer.Duration
		changed = true
	}
	if timer.IsPaused && !timer.IsActive {
		timer.IsPaused = false
		changed = true
	}
	if timer.IsActive && timer.TimeRemaining == 0 {
		timer.IsActive = false
		timer.IsPaused = false
		changed = true
	}
	return changed
}

func stop(timer *models.Timer) {
	timer.IsActive = false
	timer.IsPaused = false
}

func (s *Store) find(id string) *models.Timer {
	for _, timer := range s.timers {
		if timer.ID == id {
			return timer
		}
	}
	return nil
}

func (s *Store) activeForStep(stepID string) *models.Timer {
	for _, timer := range s.timers {
		if timer.StepID == stepID && timer.IsActive {
			return timer
		}
	}
	return nil
}

func (s *Store) filter(keep func(*models.Timer) bool) []models.Timer {
	out := make([]models.Timer, 0, len(s.timers))
	for _, timer := range s.timers {
		if keep(timer) {
			out = append(out, timer.Clone())
		}
	}
	return out
}
