package handlers

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/korjavin/kitchentimer/pkg/extract"
	"github.com/korjavin/kitchentimer/pkg/messages"
	"github.com/korjavin/kitchentimer/pkg/models"
)

const selectPrefix = "timer:"

// selection is a duration choice waiting for the user to tap a button
type selection struct {
	chatID      int64
	stepID      string
	stepTitle   string
	recipeTitle string
	candidates  []models.Candidate
}

// HandleTimer starts a timer from the cooking time mentioned in a step.
//
//	/timer text
//	/timer step | text
//	/timer recipe | step | text
//
// A step with several cooking times gets a keyboard to pick one.
func (h *Handlers) HandleTimer(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	recipe, step, text := parseTimerArgs(message.CommandArguments())
	if text == "" {
		h.reply(chatID, "Usage: /timer [recipe |] [step |] step text\nExample: /timer Pasta | Boil | Boil for 10-12 minutes")
		return
	}

	candidates := extract.All(text)
	title := stepTitle(step)
	stepID := StepID(chatID, step)

	switch len(candidates) {
	case 0:
		h.reply(chatID, "🤷 I couldn't find a cooking time in that step. Try something like \"simmer for 10 minutes\".")
	case 1:
		h.start(chatID, stepID, title, recipe, candidates[0].Seconds)
	default:
		token := uuid.NewString()
		h.selections.Set(token, selection{
			chatID:      chatID,
			stepID:      stepID,
			stepTitle:   title,
			recipeTitle: recipe,
			candidates:  candidates,
		})

		var rows [][]tgbotapi.InlineKeyboardButton
		for i, c := range candidates {
			data := selectPrefix + token + ":" + strconv.Itoa(i)
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(c.Label, data)))
		}
		keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
		if _, err := h.sender.SendMessageWithKeyboard(chatID, messages.CandidatesText(title, candidates), keyboard); err != nil {
			h.logger.Error("Failed to send duration choice: %v", err)
			h.selections.Delete(token)
			return
		}
		h.logger.Debug("Chat %d choosing between %d durations, %d choices pending", chatID, len(candidates), h.selections.Len())
	}
}

// HandleSelection starts the timer the user picked from a keyboard
func (h *Handlers) HandleSelection(callback *tgbotapi.CallbackQuery) {
	token, index, ok := parseSelection(callback.Data)
	sel, found := h.selections.Get(token)
	if !ok || !found || index >= len(sel.candidates) {
		h.answer(callback.ID, "⌛ This choice has expired. Send /timer again.")
		return
	}
	if callback.Message != nil && callback.Message.Chat != nil && callback.Message.Chat.ID != sel.chatID {
		h.answer(callback.ID, "This choice belongs to another chat.")
		return
	}
	h.selections.Delete(token)

	timer, err := h.timers.StartTimer(sel.stepID, sel.stepTitle, sel.recipeTitle, sel.candidates[index].Seconds)
	if err != nil {
		h.logger.Error("Failed to start timer for %s: %v", sel.stepID, err)
		h.answer(callback.ID, "😢 Sorry, I couldn't start that timer.")
		return
	}
	h.answer(callback.ID, "Timer started")

	if callback.Message != nil {
		if _, err := h.sender.EditMessage(sel.chatID, callback.Message.MessageID, messages.StartedText(timer)); err != nil {
			h.logger.Error("Failed to edit duration choice: %v", err)
		}
	}
}

func (h *Handlers) start(chatID int64, stepID, title, recipe string, seconds int) {
	timer, err := h.timers.StartTimer(stepID, title, recipe, seconds)
	if err != nil {
		h.logger.Error("Failed to start timer for %s: %v", stepID, err)
		h.reply(chatID, "😢 Sorry, I couldn't start that timer.")
		return
	}
	h.reply(chatID, messages.StartedText(timer))
}

func (h *Handlers) answer(callbackID, text string) {
	if err := h.sender.AnswerCallbackQuery(callbackID, text); err != nil {
		h.logger.Error("Failed to answer callback: %v", err)
	}
}

func parseTimerArgs(args string) (recipe, step, text string) {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 1:
		text = parts[0]
	case 2:
		step, text = parts[0], parts[1]
	default:
		recipe, step, text = parts[0], parts[1], strings.Join(parts[2:], " | ")
	}
	if step == "" {
		step = "1"
	}
	return recipe, step, text
}

func parseSelection(data string) (string, int, bool) {
	rest, ok := strings.CutPrefix(data, selectPrefix)
	if !ok {
		return "", 0, false
	}
	token, indexStr, ok := strings.Cut(rest, ":")
	if !ok {
		return "", 0, false
	}
	index, err := strconv.Atoi(indexStr)
	if err != nil || index < 0 {
		return "", 0, false
	}
	return token, index, true
}
