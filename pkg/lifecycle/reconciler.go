// Package lifecycle tracks process suspension and fast-forwards timers on
// resume by the whole seconds that passed while the process was asleep.
package lifecycle

import (
	"sync"
	"time"

	"github.com/korjavin/kitchentimer/pkg/clock"
	"github.com/korjavin/kitchentimer/pkg/logger"
)

// ReconcileFunc receives the whole seconds elapsed during a suspension.
type ReconcileFunc func(elapsed int)

// Reconciler records when the process went to the background and reports
// the elapsed time when it comes back.
type Reconciler struct {
	mu          sync.Mutex
	clock       clock.Clock
	reconcile   ReconcileFunc
	suspendedAt time.Time
	suspended   bool
	logger      *logger.Logger
}

// New creates a reconciler. reconcile is called on every effective resume.
func New(c clock.Clock, reconcile ReconcileFunc) *Reconciler {
	if c == nil {
		c = clock.Real{}
	}
	return &Reconciler{
		clock:     c,
		reconcile: reconcile,
		logger:    logger.New("lifecycle"),
	}
}

// OnSuspend records the suspension time. A second suspend before a resume
// keeps the first time and returns false.
func (r *Reconciler) OnSuspend() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.suspended {
		return false
	}
	r.suspended = true
	r.suspendedAt = r.clock.Now()
	r.logger.Info("Suspended at %s", r.suspendedAt.Format(time.RFC3339))
	return true
}

// OnResume clears the suspension and passes the whole elapsed seconds to the
// reconcile callback. It returns false when there was no suspension.
func (r *Reconciler) OnResume() (int, bool) {
	r.mu.Lock()
	if !r.suspended {
		r.mu.Unlock()
		return 0, false
	}
	elapsed := WholeSeconds(r.clock.Now().Sub(r.suspendedAt))
	r.suspended = false
	r.suspendedAt = time.Time{}
	r.mu.Unlock()

	r.logger.Info("Resumed after %ds", elapsed)
	if r.reconcile != nil {
		r.reconcile(elapsed)
	}
	return elapsed, true
}

// Checkpoint returns the whole seconds elapsed since the suspension started
// or since the previous checkpoint, and moves the mark forward by exactly
// that much so no fraction of a second is lost. It returns false when there
// is no suspension. The reconcile callback is not called: the caller charges
// the seconds itself before changing timers mid-suspension.
func (r *Reconciler) Checkpoint() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.suspended {
		return 0, false
	}
	elapsed := WholeSeconds(r.clock.Now().Sub(r.suspendedAt))
	r.suspendedAt = r.suspendedAt.Add(time.Duration(elapsed) * time.Second)
	return elapsed, true
}

// Suspended reports whether a suspension is in progress.
func (r *Reconciler) Suspended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspended
}

// WholeSeconds floors d to seconds. Negative durations (clock stepped back)
// count as zero.
func WholeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
