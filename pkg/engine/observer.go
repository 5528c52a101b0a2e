package engine

import "github.com/korjavin/kitchentimer/pkg/models"

// Observer is told about every timer that runs out.
type Observer interface {
	TimerCompleted(event models.CompletionEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event models.CompletionEvent)

// TimerCompleted calls f(event).
func (f ObserverFunc) TimerCompleted(event models.CompletionEvent) {
	f(event)
}

type subscription struct {
	id       uint64
	observer Observer
}
