package stats

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/models"
	"github.com/korjavin/kitchentimer/pkg/storage"
)

// Store is the JSON key-value store statistics live in. *storage.Store
// implements it.
type Store interface {
	Get(key string, value interface{}) error
	Set(key string, value interface{}) error
	Delete(key string) error
	List(prefix string) ([]string, error)
}

const keyPrefix = "stats:"

// Service provides statistics functionality
type Service struct {
	mu     sync.Mutex
	store  Store
	logger *logger.Logger
}

// New creates a new statistics service
func New(store Store) *Service {
	return &Service{
		store:  store,
		logger: logger.New("stats"),
	}
}

// ScopeOf returns the scope a step ID belongs to: the part before the first
// "/", or the whole ID when there is none.
func ScopeOf(stepID string) string {
	scope, _, _ := strings.Cut(stepID, "/")
	return scope
}

func key(scope string) string {
	return keyPrefix + scope
}

// Scopes lists every scope that has statistics, in key order
func (s *Service) Scopes() ([]string, error) {
	keys, err := s.store.List(keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list statistics: %w", err)
	}
	scopes := make([]string, 0, len(keys))
	for _, k := range keys {
		scopes = append(scopes, strings.TrimPrefix(k, keyPrefix))
	}
	return scopes, nil
}

// Reset forgets a scope's statistics
func (s *Service) Reset(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(key(scope)); err != nil {
		return fmt.Errorf("failed to reset statistics: %w", err)
	}
	s.logger.Info("Reset statistics for %s", scope)
	return nil
}

// GetStatistics retrieves the statistics for a scope
func (s *Service) GetStatistics(scope string) (*models.CookingStats, error) {
	var stats models.CookingStats
	err := s.store.Get(key(scope), &stats)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to read statistics: %w", err)
		}
		stats = models.CookingStats{Scope: scope}
	}
	if stats.Recipes == nil {
		stats.Recipes = make(map[string]models.RecipeStat)
	}
	return &stats, nil
}

// RecordCompletion adds a finished timer to its scope's statistics
func (s *Service) RecordCompletion(event models.CompletionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := ScopeOf(event.Timer.StepID)
	stats, err := s.GetStatistics(scope)
	if err != nil {
		return err
	}

	stats.CompletedCount++
	stats.TotalSeconds += event.Timer.Duration
	if event.At.After(stats.LastCompletedAt) {
		stats.LastCompletedAt = event.At
	}

	if event.RecipeTitle != "" {
		recipeStat := stats.Recipes[event.RecipeTitle]
		recipeStat.Recipe = event.RecipeTitle
		recipeStat.CompletedCount++
		recipeStat.TotalSeconds += event.Timer.Duration
		stats.Recipes[event.RecipeTitle] = recipeStat
	}

	return s.store.Set(key(scope), stats)
}

// TimerCompleted records the event, logging failures
func (s *Service) TimerCompleted(event models.CompletionEvent) {
	if err := s.RecordCompletion(event); err != nil {
		s.logger.Error("Failed to record completion of timer %s: %v", event.Timer.ID, err)
	}
}

// GetTopRecipes returns the recipes with the most finished timers
func (s *Service) GetTopRecipes(scope string, limit int) ([]models.RecipeStat, error) {
	stats, err := s.GetStatistics(scope)
	if err != nil {
		return nil, err
	}

	// Convert map to slice for sorting
	recipes := make([]models.RecipeStat, 0, len(stats.Recipes))
	for _, recipeStat := range stats.Recipes {
		recipes = append(recipes, recipeStat)
	}

	// Most timers first, then most time, then by name
	sort.Slice(recipes, func(i, j int) bool {
		if recipes[i].CompletedCount != recipes[j].CompletedCount {
			return recipes[i].CompletedCount > recipes[j].CompletedCount
		}
		if recipes[i].TotalSeconds != recipes[j].TotalSeconds {
			return recipes[i].TotalSeconds > recipes[j].TotalSeconds
		}
		return recipes[i].Recipe < recipes[j].Recipe
	})

	// Take the top N recipes
	if len(recipes) > limit {
		recipes = recipes[:limit]
	}

	return recipes, nil
}
