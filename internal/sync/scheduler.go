package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"
)

// State is the state of the background scheduler.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the scheduler state.
type Status struct {
	State      State
	LastSync   time.Time
	LastReport Report
	Error      error
}

// defaultInterval is used when the configured interval is not positive.
const defaultInterval = 5 * time.Minute

// Runner runs one sync round.
type Runner interface {
	RunSync(ctx context.Context) (Report, error)
}

// Scheduler runs sync rounds in the background on a fixed interval and on
// demand via Trigger.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	resultCh  chan Status

	mu      gosync.Mutex
	status  Status
	running bool
}

// NewScheduler creates a Scheduler. A non-positive timeout leaves rounds
// bounded only by the transport.
func NewScheduler(r Runner, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:    r,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		triggerCh: make(chan struct{}, 1),
		resultCh:  make(chan Status, 16),
	}
}

// Start launches the polling goroutine. It runs one round immediately.
// Starting a running scheduler has no effect; a stopped one starts again.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx, s.stopCh, s.doneCh)
}

// Stop halts the polling goroutine and waits for the current round.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
}

// Trigger requests an immediate round. Requests made while one is already
// pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Results delivers the status after every round. Results are dropped when
// nobody reads them.
func (s *Scheduler) Results() <-chan Status {
	return s.resultCh
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

// runOnce performs a single round and records its outcome.
func (s *Scheduler) runOnce(ctx context.Context) {
	s.setState(StateRunning, nil, nil)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.runner.RunSync(ctx)
	if err != nil {
		s.logger.Debug("scheduled sync failed", "error", err)
		s.setState(StateError, nil, err)
	} else {
		s.setState(StateIdle, &report, nil)
	}

	select {
	case s.resultCh <- s.Status():
	default:
	}
}

func (s *Scheduler) setState(state State, report *Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = state
	s.status.Error = err
	if report != nil {
		s.status.LastReport = *report
		s.status.LastSync = report.At
	}
}
