package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/messages"
	"github.com/korjavin/kitchentimer/pkg/models"
)

// Notifier announces finished timers in the chat that started them. It is
// registered with engine.Subscribe.
type Notifier struct {
	sender   Sender
	messages *messages.Service
	timeout  time.Duration
	logger   *logger.Logger
	wg       sync.WaitGroup
}

// NewNotifier creates a notifier
func NewNotifier(sender Sender, msgs *messages.Service) *Notifier {
	return &Notifier{
		sender:   sender,
		messages: msgs,
		timeout:  15 * time.Second,
		logger:   logger.New("notifier"),
	}
}

// TimerCompleted sends the completion message without blocking the caller,
// which is the engine's tick loop.
func (n *Notifier) TimerCompleted(event models.CompletionEvent) {
	chatID, ok := ChatOf(event.Timer.StepID)
	if !ok {
		n.logger.Debug("Timer %s has no chat, not announcing", event.Timer.ID)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		text := n.messages.GenerateCompletionMessage(ctx, event)
		if _, err := n.sender.SendMessage(chatID, text); err != nil {
			n.logger.Error("Failed to announce timer %s in chat %d: %v", event.Timer.ID, chatID, err)
		}
	}()
}

// Wait blocks until every pending announcement has been sent
func (n *Notifier) Wait() {
	n.wg.Wait()
}
