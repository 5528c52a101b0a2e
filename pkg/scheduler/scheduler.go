package scheduler

import (
	"sync"
	"time"

	"github.com/korjavin/kitchentimer/pkg/logger"
)

// DefaultInterval is the countdown resolution.
const DefaultInterval = time.Second

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct {
	*time.Ticker
}

func (t realTicker) C() <-chan time.Time {
	return t.Ticker.C
}

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

// Service runs onTick on a fixed interval while enabled
type Service struct {
	mu        sync.Mutex
	onTick    func()
	interval  time.Duration
	newTicker TickerFunc
	logger    *logger.Logger

	// stopChan is non-nil while the loop runs
	stopChan chan struct{}
	// generation changes on every start and stop so a loop that lost a race
	// with Stop never ticks again
	generation uint64
}

// Option configures a Service
type Option func(*Service)

// WithInterval overrides the tick interval
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTicker overrides the ticker factory
func WithTicker(f TickerFunc) Option {
	return func(s *Service) {
		if f != nil {
			s.newTicker = f
		}
	}
}

// WithLogger overrides the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a stopped scheduler. onTick is called from the scheduler
// goroutine without any scheduler lock held, so it may call Ensure or Stop.
func New(onTick func(), opts ...Option) *Service {
	s := &Service{
		onTick:    onTick,
		interval:  DefaultInterval,
		newTicker: NewRealTicker,
		logger:    logger.New("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure starts the loop when shouldRun is true and stops it otherwise.
// Calling it repeatedly with the same value does nothing.
func (s *Service) Ensure(shouldRun bool) {
	if shouldRun {
		s.Start()
	} else {
		s.Stop()
	}
}

// Start starts the tick loop if it is not already running
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan != nil {
		return
	}

	s.generation++
	stop := make(chan struct{})
	s.stopChan = stop
	ticker := s.newTicker(s.interval)
	go s.run(ticker, stop, s.generation)

	s.logger.Debug("Tick loop started (interval %v)", s.interval)
}

// Stop stops the tick loop. It does not wait for the loop goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan == nil {
		return
	}

	s.generation++
	close(s.stopChan)
	s.stopChan = nil

	s.logger.Debug("Tick loop stopped")
}

// Running reports whether the tick loop is enabled
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopChan != nil
}

func (s *Service) current(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == generation
}

func (s *Service) run(ticker Ticker, stop <-chan struct{}, generation uint64) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			if !s.current(generation) {
				return
			}
			s.onTick()
		case <-stop:
			return
		}
	}
}
