package messages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/korjavin/kitchentimer/pkg/cache"
	"github.com/korjavin/kitchentimer/pkg/clock"
	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/models"
	"github.com/korjavin/kitchentimer/pkg/openai"
	"github.com/korjavin/kitchentimer/pkg/timefmt"
)

// Generator phrases a message for an intent. *openai.Client implements it.
type Generator interface {
	GenerateChatMessage(ctx context.Context, intent string, contextData map[string]interface{}) (string, error)
}

// Service provides message generation functionality
type Service struct {
	generator Generator
	phrased   *cache.Cache[string, string]
	clock     clock.Clock
	logger    *logger.Logger
}

// New creates a new message service. generator may be nil, in which case
// every message uses its fixed template. Generated completion messages are
// reused for cacheTTL per step.
func New(generator Generator, cacheTTL time.Duration, c clock.Clock) *Service {
	if c == nil {
		c = clock.Real{}
	}
	return &Service{
		generator: generator,
		phrased:   cache.New[string, string](cacheTTL, c),
		clock:     c,
		logger:    logger.New("messages"),
	}
}

// GenerateWelcomeMessage generates a welcome message
func (s *Service) GenerateWelcomeMessage(ctx context.Context) string {
	fallback := "👋 Welcome to KitchenTimer! Send me a recipe step with /timer and I'll count down the cooking time for you.\n\n" + HelpText()
	if s.generator == nil {
		return fallback
	}
	msg, err := s.generator.GenerateChatMessage(ctx, openai.IntentWelcome, map[string]interface{}{
		"purpose": "Keep cooking timers for recipe steps",
		"example": "/timer Pasta | Boil | Boil for 10-12 minutes",
	})
	if err != nil {
		s.logger.Error("Failed to generate welcome message: %v", err)
		return fallback
	}
	return msg + "\n\n" + HelpText()
}

// GenerateCompletionMessage generates the message announcing a finished timer
func (s *Service) GenerateCompletionMessage(ctx context.Context, event models.CompletionEvent) string {
	fallback := CompletionText(event)
	if s.generator == nil {
		return fallback
	}

	key := event.RecipeTitle + "\x00" + event.StepTitle
	if msg, ok := s.phrased.Get(key); ok {
		return msg
	}

	msg, err := s.generator.GenerateChatMessage(ctx, openai.IntentTimerCompleted, map[string]interface{}{
		"step":     event.StepTitle,
		"recipe":   event.RecipeTitle,
		"duration": timefmt.Duration(event.Timer.Duration),
	})
	if err != nil {
		s.logger.Error("Failed to generate completion message: %v", err)
		return fallback
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return fallback
	}
	s.phrased.Set(key, msg)
	return msg
}

// CompletionText is the fixed completion announcement
func CompletionText(event models.CompletionEvent) string {
	var b strings.Builder
	b.WriteString("🍳 Timer Complete!\n")
	fmt.Fprintf(&b, "%q timer has finished!", event.StepTitle)
	if event.RecipeTitle != "" {
		fmt.Fprintf(&b, "\nRecipe: %s", event.RecipeTitle)
	}
	return b.String()
}

// HelpText lists the bot commands
func HelpText() string {
	return strings.Join([]string{
		"/timer [recipe |] [step |] text: start a timer from the cooking time in a step",
		"/timers: list timers",
		"/pause step, /resume step, /stop step, /reset step",
		"/toggle step: pause, resume or restart a step's timer",
		"/total: time left on running timers",
		"/clear: remove finished timers",
		"/stats: cooking statistics, /stats reset to start over",
	}, "\n")
}

// Status describes a timer's state in one word
func Status(t models.Timer) string {
	switch {
	case t.Running():
		return "running"
	case t.IsPaused:
		return "paused"
	case t.Completed():
		return "done"
	default:
		return "stopped"
	}
}

func statusIcon(t models.Timer) string {
	switch Status(t) {
	case "running":
		return "⏱"
	case "paused":
		return "⏸"
	case "done":
		return "✅"
	default:
		return "⏹"
	}
}

// TimerLine renders one timer for a listing
func TimerLine(t models.Timer, now time.Time) string {
	title := t.StepTitle
	if t.RecipeTitle != "" {
		title = t.RecipeTitle + ": " + t.StepTitle
	}

	if t.Completed() && t.CompletedAt != nil {
		return fmt.Sprintf("%s %s (%s), finished %s", statusIcon(t), title,
			timefmt.Duration(t.Duration), humanize.RelTime(*t.CompletedAt, now, "ago", "from now"))
	}
	return fmt.Sprintf("%s %s %s / %s (%s)", statusIcon(t), title,
		timefmt.Remaining(t.TimeRemaining), timefmt.Remaining(t.Duration), Status(t))
}

// TimerList renders a listing of timers
func (s *Service) TimerList(timers []models.Timer) string {
	if len(timers) == 0 {
		return "No timers yet. Start one with /timer."
	}
	now := s.clock.Now()
	lines := make([]string, 0, len(timers)+1)
	lines = append(lines, fmt.Sprintf("🍽 %s:", pluralTimers(len(timers))))
	for _, t := range timers {
		lines = append(lines, TimerLine(t, now))
	}
	return strings.Join(lines, "\n")
}

// TotalText describes the remaining time across running timers
func TotalText(seconds, running int) string {
	if running == 0 {
		return "Nothing is cooking right now."
	}
	return fmt.Sprintf("⏱ %s left across %s.", timefmt.Duration(seconds), pluralTimers(running))
}

// StatsText summarises a chat's finished timers
func StatsText(stats *models.CookingStats, top []models.RecipeStat) string {
	if stats == nil || stats.CompletedCount == 0 {
		return "📊 No finished timers yet."
	}
	lines := []string{fmt.Sprintf("📊 %s finished, %s of cooking timed. Last one %s.",
		pluralTimers(stats.CompletedCount), timefmt.Duration(stats.TotalSeconds), humanize.Time(stats.LastCompletedAt))}
	if len(top) > 0 {
		lines = append(lines, "Top recipes:")
		for i, r := range top {
			lines = append(lines, fmt.Sprintf("%d. %s: %s, %s", i+1, r.Recipe, pluralTimers(r.CompletedCount), timefmt.Duration(r.TotalSeconds)))
		}
	}
	return strings.Join(lines, "\n")
}

// StartedText confirms a new timer
func StartedText(t models.Timer) string {
	return fmt.Sprintf("⏱ %s timer started for %s.", timefmt.Duration(t.Duration), quoteStep(t))
}

// CandidatesText asks the user to choose between durations
func CandidatesText(stepTitle string, candidates []models.Candidate) string {
	found := make([]string, len(candidates))
	for i, c := range candidates {
		found[i] = c.MatchedText
	}
	return fmt.Sprintf("⏲ %q mentions several cooking times (%s). Which timer should I start?",
		stepTitle, strings.Join(found, ", "))
}

func quoteStep(t models.Timer) string {
	if t.RecipeTitle != "" {
		return fmt.Sprintf("%q (%s)", t.StepTitle, t.RecipeTitle)
	}
	return fmt.Sprintf("%q", t.StepTitle)
}

func pluralTimers(n int) string {
	if n == 1 {
		return "1 timer"
	}
	return humanize.Comma(int64(n)) + " timers"
}
