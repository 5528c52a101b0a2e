// Package handlers is the Telegram front end of the timer engine. It turns
// chat commands into engine operations and completion events into chat
// messages.
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/kitchentimer/pkg/cache"
	"github.com/korjavin/kitchentimer/pkg/clock"
	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/messages"
	"github.com/korjavin/kitchentimer/pkg/models"
	"github.com/korjavin/kitchentimer/pkg/telegram"
	"github.com/korjavin/kitchentimer/pkg/timefmt"
)

// Sender is the subset of the bot the handlers talk through. *telegram.Bot
// implements it.
type Sender interface {
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string) (tgbotapi.Message, error)
	AnswerCallbackQuery(callbackID string, text string) error
}

// Timers is the engine surface the handlers use. *engine.Engine implements it.
type Timers interface {
	StartTimer(stepID, stepTitle, recipeTitle string, seconds int) (models.Timer, error)
	PauseTimer(id string) bool
	ResumeTimer(id string) bool
	StopTimer(id string) bool
	ResetTimer(id string) bool
	GetTimerForStep(stepID string) (models.Timer, bool)
	ListTimers() []models.Timer
	ClearCompletedTimers() int
}

// Stats reports cooking statistics per chat. *stats.Service implements it.
type Stats interface {
	GetStatistics(scope string) (*models.CookingStats, error)
	GetTopRecipes(scope string, limit int) ([]models.RecipeStat, error)
	Reset(scope string) error
}

// Handlers holds the command and callback handlers
type Handlers struct {
	timers     Timers
	sender     Sender
	messages   *messages.Service
	stats      Stats
	selections *cache.Cache[string, selection]
	logger     *logger.Logger
}

// New creates the handlers. Pending duration choices expire after selectionTTL.
func New(timers Timers, sender Sender, msgs *messages.Service, selectionTTL time.Duration, c clock.Clock) *Handlers {
	return &Handlers{
		timers:     timers,
		sender:     sender,
		messages:   msgs,
		selections: cache.New[string, selection](selectionTTL, c),
		logger:     logger.New("handlers"),
	}
}

// WithStats enables the /stats command
func (h *Handlers) WithStats(stats Stats) *Handlers {
	h.stats = stats
	return h
}

// Routes returns the bot routing table
func (h *Handlers) Routes() telegram.Routes {
	return telegram.Routes{
		Commands: map[string]telegram.CommandHandler{
			"start":  h.HandleStart,
			"help":   h.HandleHelp,
			"timer":  h.HandleTimer,
			"timers": h.HandleList,
			"pause":  h.HandlePause,
			"resume": h.HandleResume,
			"stop":   h.HandleStop,
			"reset":  h.HandleReset,
			"toggle": h.HandleToggle,
			"clear":  h.HandleClear,
			"total":  h.HandleTotal,
			"stats":  h.HandleStats,
		},
		Callbacks: map[string]telegram.CallbackHandler{
			selectPrefix: h.HandleSelection,
		},
	}
}

// StepID scopes a step name to a chat so chats never share timers
func StepID(chatID int64, step string) string {
	return fmt.Sprintf("%d/%s", chatID, stepKey(step))
}

// ChatOf returns the chat a step ID belongs to
func ChatOf(stepID string) (int64, bool) {
	prefix, _, ok := strings.Cut(stepID, "/")
	if !ok {
		return 0, false
	}
	chatID, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return chatID, true
}

func stepKey(step string) string {
	return strings.ToLower(strings.Join(strings.Fields(step), " "))
}

// stepTitle names a step. A bare number N or nothing becomes "Step N".
func stepTitle(step string) string {
	step = strings.TrimSpace(step)
	if step == "" {
		return "Step 1"
	}
	if n, err := strconv.Atoi(step); err == nil && n > 0 {
		return fmt.Sprintf("Step %d", n)
	}
	return step
}

func (h *Handlers) reply(chatID int64, text string) {
	if _, err := h.sender.SendMessage(chatID, text); err != nil {
		h.logger.Error("Failed to send message to chat %d: %v", chatID, err)
	}
}

// HandleStart greets the chat
func (h *Handlers) HandleStart(message *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	h.reply(message.Chat.ID, h.messages.GenerateWelcomeMessage(ctx))
}

// HandleHelp lists the commands
func (h *Handlers) HandleHelp(message *tgbotapi.Message) {
	h.reply(message.Chat.ID, messages.HelpText())
}

// HandleList lists the chat's timers
func (h *Handlers) HandleList(message *tgbotapi.Message) {
	h.reply(message.Chat.ID, h.messages.TimerList(h.chatTimers(message.Chat.ID)))
}

// HandleTotal reports the remaining time across the chat's running timers
func (h *Handlers) HandleTotal(message *tgbotapi.Message) {
	total, running := 0, 0
	for _, t := range h.chatTimers(message.Chat.ID) {
		if t.Running() {
			total += t.TimeRemaining
			running++
		}
	}
	h.reply(message.Chat.ID, messages.TotalText(total, running))
}

// HandleStats shows how much cooking the chat has timed. "/stats reset"
// starts the count over.
func (h *Handlers) HandleStats(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if h.stats == nil {
		h.reply(chatID, "Statistics are not enabled.")
		return
	}
	scope := strconv.FormatInt(chatID, 10)

	if strings.EqualFold(strings.TrimSpace(message.CommandArguments()), "reset") {
		if err := h.stats.Reset(scope); err != nil {
			h.logger.Error("Failed to reset statistics for chat %d: %v", chatID, err)
			h.reply(chatID, "😢 Sorry, I couldn't reset your statistics.")
			return
		}
		h.reply(chatID, "🧹 Statistics reset.")
		return
	}
	stats, err := h.stats.GetStatistics(scope)
	if err != nil {
		h.logger.Error("Failed to get statistics for chat %d: %v", chatID, err)
		h.reply(chatID, "😢 Sorry, I couldn't load your statistics.")
		return
	}
	top, err := h.stats.GetTopRecipes(scope, 3)
	if err != nil {
		h.logger.Error("Failed to get top recipes for chat %d: %v", chatID, err)
	}
	h.reply(chatID, messages.StatsText(stats, top))
}

// HandleClear removes finished timers
func (h *Handlers) HandleClear(message *tgbotapi.Message) {
	removed := h.timers.ClearCompletedTimers()
	if removed == 0 {
		h.reply(message.Chat.ID, "No finished timers to clear.")
		return
	}
	h.reply(message.Chat.ID, fmt.Sprintf("🧹 Cleared %d finished timers.", removed))
}

// HandlePause pauses a step's running timer
func (h *Handlers) HandlePause(message *tgbotapi.Message) {
	h.withActive(message, "pause", func(t models.Timer) string {
		if h.timers.PauseTimer(t.ID) {
			return fmt.Sprintf("⏸ Paused %q with %s left.", t.StepTitle, remaining(t))
		}
		return fmt.Sprintf("%q is already paused.", t.StepTitle)
	})
}

// HandleResume resumes a step's paused timer
func (h *Handlers) HandleResume(message *tgbotapi.Message) {
	h.withActive(message, "resume", func(t models.Timer) string {
		if h.timers.ResumeTimer(t.ID) {
			return fmt.Sprintf("▶️ Resumed %q, %s left.", t.StepTitle, remaining(t))
		}
		return fmt.Sprintf("%q is already running.", t.StepTitle)
	})
}

// HandleStop stops a step's timer
func (h *Handlers) HandleStop(message *tgbotapi.Message) {
	h.withActive(message, "stop", func(t models.Timer) string {
		h.timers.StopTimer(t.ID)
		return fmt.Sprintf("⏹ Stopped %q with %s left.", t.StepTitle, remaining(t))
	})
}

// HandleReset returns a step's latest timer to its full duration
func (h *Handlers) HandleReset(message *tgbotapi.Message) {
	step := strings.TrimSpace(message.CommandArguments())
	if step == "" {
		h.reply(message.Chat.ID, "Which step? Usage: /reset step")
		return
	}
	t, ok := h.latestForStep(message.Chat.ID, step)
	if !ok || !h.timers.ResetTimer(t.ID) {
		h.reply(message.Chat.ID, fmt.Sprintf("No timer for %q.", stepTitle(step)))
		return
	}
	h.reply(message.Chat.ID, fmt.Sprintf("↩️ Reset %q to %s. Use /toggle %s to start it again.", t.StepTitle, timefmt.Remaining(t.Duration), step))
}

// HandleToggle pauses a running timer, resumes a paused one and restarts
// anything else
func (h *Handlers) HandleToggle(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	step := strings.TrimSpace(message.CommandArguments())
	if step == "" {
		h.reply(chatID, "Which step? Usage: /toggle step")
		return
	}

	if t, ok := h.timers.GetTimerForStep(StepID(chatID, step)); ok {
		if t.IsPaused {
			h.timers.ResumeTimer(t.ID)
			h.reply(chatID, fmt.Sprintf("▶️ Resumed %q, %s left.", t.StepTitle, remaining(t)))
		} else {
			h.timers.PauseTimer(t.ID)
			h.reply(chatID, fmt.Sprintf("⏸ Paused %q with %s left.", t.StepTitle, remaining(t)))
		}
		return
	}

	last, ok := h.latestForStep(chatID, step)
	if !ok {
		h.reply(chatID, fmt.Sprintf("No timer for %q. Start one with /timer.", stepTitle(step)))
		return
	}
	started, err := h.timers.StartTimer(last.StepID, last.StepTitle, last.RecipeTitle, last.Duration)
	if err != nil {
		h.logger.Error("Failed to restart timer for %s: %v", last.StepID, err)
		h.reply(chatID, "😢 Sorry, I couldn't restart that timer.")
		return
	}
	h.reply(chatID, messages.StartedText(started))
}

func (h *Handlers) withActive(message *tgbotapi.Message, verb string, apply func(models.Timer) string) {
	chatID := message.Chat.ID
	step := strings.TrimSpace(message.CommandArguments())
	if step == "" {
		h.reply(chatID, fmt.Sprintf("Which step? Usage: /%s step", verb))
		return
	}
	t, ok := h.timers.GetTimerForStep(StepID(chatID, step))
	if !ok {
		h.reply(chatID, fmt.Sprintf("No active timer for %q.", stepTitle(step)))
		return
	}
	h.reply(chatID, apply(t))
}

func (h *Handlers) chatTimers(chatID int64) []models.Timer {
	var out []models.Timer
	for _, t := range h.timers.ListTimers() {
		if id, ok := ChatOf(t.StepID); ok && id == chatID {
			out = append(out, t)
		}
	}
	return out
}

// latestForStep returns the most recently created timer for a step
func (h *Handlers) latestForStep(chatID int64, step string) (models.Timer, bool) {
	stepID := StepID(chatID, step)
	var latest models.Timer
	found := false
	for _, t := range h.timers.ListTimers() {
		if t.StepID == stepID {
			latest = t
			found = true
		}
	}
	return latest, found
}

func remaining(t models.Timer) string {
	return timefmt.Remaining(t.TimeRemaining)
}
