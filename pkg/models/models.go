package models

import (
	"time"
)

// Timer represents a countdown bound to a recipe step
type Timer struct {
	ID            string     `json:"id" cbor:"id"`
	StepID        string     `json:"step_id" cbor:"step_id"`
	StepTitle     string     `json:"step_title" cbor:"step_title"`
	RecipeTitle   string     `json:"recipe_title" cbor:"recipe_title"`
	Duration      int        `json:"duration" cbor:"duration"`             // seconds
	TimeRemaining int        `json:"time_remaining" cbor:"time_remaining"` // seconds
	IsActive      bool       `json:"is_active" cbor:"is_active"`
	IsPaused      bool       `json:"is_paused" cbor:"is_paused"`
	CreatedAt     time.Time  `json:"created_at" cbor:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" cbor:"completed_at,omitempty"`
}

// Running reports whether the timer is counting down
func (t Timer) Running() bool {
	return t.IsActive && !t.IsPaused
}

// Completed reports whether the timer ran out (as opposed to being stopped early)
func (t Timer) Completed() bool {
	return !t.IsActive && t.TimeRemaining == 0
}

// Clone returns a copy that shares no pointers with t
func (t Timer) Clone() Timer {
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}

// Candidate is a countdown duration found in step text
type Candidate struct {
	Seconds     int    `json:"seconds"`
	Label       string `json:"label"`
	MatchedText string `json:"matched_text"`
}

// CompletionEvent is delivered to observers when a timer reaches zero
type CompletionEvent struct {
	Timer       Timer
	StepTitle   string
	RecipeTitle string
	At          time.Time
}

// CookingStats summarises finished timers for one chat or other scope
type CookingStats struct {
	Scope           string                `json:"scope"`
	CompletedCount  int                   `json:"completed_count"`
	TotalSeconds    int                   `json:"total_seconds"`
	Recipes         map[string]RecipeStat `json:"recipes"`
	LastCompletedAt time.Time             `json:"last_completed_at"`
}

// RecipeStat counts finished timers for one recipe
type RecipeStat struct {
	Recipe         string `json:"recipe"`
	CompletedCount int    `json:"completed_count"`
	TotalSeconds   int    `json:"total_seconds"`
}
