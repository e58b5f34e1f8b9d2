// Package scheduler decides when each provider instance syncs. It owns the
// per-instance state machine (idle, due, running, backoff) and a fixed pool
// of workers draining a FIFO due-queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-costhook/core"
	glog "github.com/goliatone/go-logger/glog"
)

var ErrNotStarted = errors.New("scheduler: not started")
var ErrAlreadyStarted = errors.New("scheduler: already started")

// Runner is the slice of core.Service the scheduler drives.
type Runner interface {
	RunSync(ctx context.Context, req core.SyncRequest) (core.SyncAttempt, error)
	ListSyncCandidates(ctx context.Context) ([]core.ProviderInstance, error)
}

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseDue     Phase = "due"
	PhaseRunning Phase = "running"
	PhaseBackoff Phase = "backoff"
)

type Config struct {
	Interval     time.Duration
	Concurrency  int
	TickInterval time.Duration
	MaxAttempts  int
}

// ConfigFromCore lifts the scheduling knobs out of the service config.
func ConfigFromCore(cfg core.Config) Config {
	return Config{
		Interval:     cfg.Sync.Interval,
		Concurrency:  cfg.Sync.Concurrency,
		TickInterval: cfg.Sync.TickInterval,
		MaxAttempts:  cfg.Sync.MaxAttempts,
	}
}

func (c Config) normalized() Config {
	defaults := ConfigFromCore(core.DefaultConfig())
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.Concurrency < 1 {
		c.Concurrency = defaults.Concurrency
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	return c
}

type Option func(*Scheduler)

func WithLogger(logger glog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithBackoff(backoff core.BackoffScheduler) Option {
	return func(s *Scheduler) {
		if backoff != nil {
			s.backoff = backoff
		}
	}
}

type instanceState struct {
	phase   Phase
	queued  bool
	rerun   bool
	blocked bool
	// requested marks a user trigger whose run has not yet held the
	// instance lock.
	requested bool
	failures  int
	nextAt    time.Time
	cancel    context.CancelFunc
	// generation changes whenever Cancel drops the state, so a finishing
	// worker can tell its result is stale.
	generation uint64
}

// Scheduler is safe for concurrent use. Trigger and Cancel may be called
// before Start; queued work waits for the workers.
type Scheduler struct {
	runner  Runner
	cfg     Config
	backoff core.BackoffScheduler
	logger  glog.Logger
	now     func() time.Time

	mu         sync.Mutex
	states     map[string]*instanceState
	queue      []string
	generation uint64
	wake       chan struct{}

	runCtx  context.Context
	stop    context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

func New(runner Runner, cfg Config, opts ...Option) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("scheduler: runner is required")
	}
	cfg = cfg.normalized()
	s := &Scheduler{
		runner: runner,
		cfg:    cfg,
		backoff: core.ExponentialBackoffScheduler{
			Initial: time.Minute,
			Max:     cfg.Interval,
		},
		logger: glog.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
		states: map[string]*instanceState{},
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s, nil
}

// NewForService builds a scheduler from the service config and backoff and
// registers it as the service sync trigger and canceller.
func NewForService(service *core.Service, opts ...Option) (*Scheduler, error) {
	if service == nil {
		return nil, fmt.Errorf("scheduler: service is required")
	}
	base := []Option{WithBackoff(service.Backoff()), WithLogger(service.Dependencies().Logger)}
	s, err := New(service, ConfigFromCore(service.Config()), append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	service.AttachSyncRuntime(s, s)
	return s, nil
}

// Start launches the workers and the due-check loop. It returns once they
// are running; ctx bounds their lifetime together with Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.runCtx, s.stop = context.WithCancel(ctx)
	s.started = true
	runCtx := s.runCtx
	pending := len(s.queue) > 0
	s.mu.Unlock()

	for i := 0; i < s.cfg.Concurrency; i++ {
		s.wg.Add(1)
		go s.worker(runCtx)
	}
	s.wg.Add(1)
	go s.tickLoop(runCtx)
	if pending {
		s.signal()
	}
	s.logger.Info("sync scheduler started", "concurrency", s.cfg.Concurrency, "interval", s.cfg.Interval.String())
	return nil
}

// Stop cancels in-flight attempts and waits for the workers to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	stop := s.stop
	s.mu.Unlock()

	stop()
	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.queue = nil
	for _, state := range s.states {
		state.queued = false
		if state.phase == PhaseDue || state.phase == PhaseRunning {
			state.phase = PhaseIdle
		}
	}
	s.mu.Unlock()
	s.logger.Info("sync scheduler stopped")
}

// Trigger requests an immediate sync. It clears any block and pending
// backoff; a trigger during a run schedules exactly one re-run.
func (s *Scheduler) Trigger(_ context.Context, providerID string) error {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return fmt.Errorf("scheduler: provider id is required")
	}
	s.mu.Lock()
	state := s.stateLocked(providerID)
	state.blocked = false
	state.requested = true
	state.failures = 0
	state.nextAt = time.Time{}
	switch {
	case state.phase == PhaseRunning:
		state.rerun = true
	case state.queued:
	default:
		s.enqueueLocked(providerID, state)
	}
	s.mu.Unlock()
	s.signal()
	return nil
}

// Cancel aborts any in-flight attempt and forgets the instance.
func (s *Scheduler) Cancel(providerID string) {
	providerID = strings.TrimSpace(providerID)
	s.mu.Lock()
	state, ok := s.states[providerID]
	if ok {
		if state.cancel != nil {
			state.cancel()
		}
		delete(s.states, providerID)
	}
	s.mu.Unlock()
}

// Phase reports the current phase of an instance, PhaseIdle when unknown.
func (s *Scheduler) Phase(providerID string) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[strings.TrimSpace(providerID)]; ok {
		return state.phase
	}
	return PhaseIdle
}

// Tick runs one due-check pass. The tick loop calls it on every interval;
// it is exported so callers can force a pass.
func (s *Scheduler) Tick(ctx context.Context) error {
	candidates, err := s.runner.ListSyncCandidates(ctx)
	if err != nil {
		s.logger.Warn("sync candidate listing failed", "error", err.Error())
		return err
	}
	now := s.now()
	live := make(map[string]struct{}, len(candidates))

	s.mu.Lock()
	enqueued := 0
	for _, candidate := range candidates {
		live[candidate.ID] = struct{}{}
		state := s.stateLocked(candidate.ID)
		if state.queued || state.phase == PhaseRunning || state.blocked {
			continue
		}
		if state.phase == PhaseBackoff {
			if now.Before(state.nextAt) {
				continue
			}
			s.enqueueLocked(candidate.ID, state)
			enqueued++
			continue
		}
		if candidate.LastSyncAt == nil || now.Sub(*candidate.LastSyncAt) >= s.cfg.Interval {
			s.enqueueLocked(candidate.ID, state)
			enqueued++
		}
	}
	for id, state := range s.states {
		if _, ok := live[id]; ok {
			continue
		}
		// Deleted or blocked in storage. Keep anything a caller is waiting on.
		if state.phase == PhaseRunning || state.queued {
			continue
		}
		delete(s.states, id)
	}
	s.mu.Unlock()

	if enqueued > 0 {
		s.signal()
	}
	return nil
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	_ = s.Tick(ctx)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Tick(ctx)
		}
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		id, ok := s.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}
		s.run(ctx, id)
	}
}

func (s *Scheduler) run(ctx context.Context, providerID string) {
	s.mu.Lock()
	state, ok := s.states[providerID]
	if !ok || !state.queued {
		s.mu.Unlock()
		return
	}
	state.queued = false
	state.phase = PhaseRunning
	attemptCtx, cancel := context.WithCancel(ctx)
	state.cancel = cancel
	generation := state.generation
	attemptNo := state.failures + 1
	req := core.SyncRequest{
		ProviderID: providerID,
		Attempt:    attemptNo,
		Final:      attemptNo >= s.cfg.MaxAttempts,
	}
	s.mu.Unlock()

	attempt, err := s.safeRun(attemptCtx, req)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.states[providerID]
	if !ok || current.generation != generation {
		return
	}
	current.cancel = nil
	s.settleLocked(providerID, current, req, attempt, err)
	if current.rerun {
		current.rerun = false
		current.blocked = false
		s.enqueueLocked(providerID, current)
		s.signal()
	}
}

func (s *Scheduler) settleLocked(providerID string, state *instanceState, req core.SyncRequest, attempt core.SyncAttempt, err error) {
	now := s.now()
	state.phase = PhaseIdle
	if !errors.Is(err, core.ErrSyncLockHeld) && !state.rerun {
		state.requested = false
	}
	switch {
	case errors.Is(err, core.ErrProviderNotFound):
		delete(s.states, providerID)
	case errors.Is(err, core.ErrSyncLockHeld):
		// Another process owns this instance. A scheduled run can rely on
		// last_sync_at at the next tick; a user trigger retries shortly.
		if state.requested {
			state.phase = PhaseBackoff
			state.nextAt = now.Add(s.backoff.NextDelay(1))
		}
	case errors.Is(err, core.ErrSyncCancelled), errors.Is(err, context.Canceled):
	case err != nil:
		s.logger.Error("sync attempt failed to run", "provider_id", providerID, "error", err.Error())
		s.backoffLocked(state, req, 0, now)
	case attempt.Outcome == core.SyncOutcomeSuccess:
		state.failures = 0
		state.nextAt = time.Time{}
	case attempt.ErrorKind.Terminal():
		state.failures = 0
		state.blocked = true
		s.logger.Warn("sync blocked until credentials change",
			"provider_id", providerID,
			"error_kind", string(attempt.ErrorKind),
		)
	default:
		s.backoffLocked(state, req, attempt.RetryAfter, now)
	}
}

func (s *Scheduler) backoffLocked(state *instanceState, req core.SyncRequest, retryAfter time.Duration, now time.Time) {
	if req.Final {
		// The failure is now visible; wait a full interval before trying again.
		state.failures = 0
		state.phase = PhaseBackoff
		state.nextAt = now.Add(s.cfg.Interval)
		return
	}
	state.failures = req.Attempt
	state.phase = PhaseBackoff
	state.nextAt = now.Add(core.RetryDelay(s.backoff, req.Attempt, retryAfter))
}

func (s *Scheduler) safeRun(ctx context.Context, req core.SyncRequest) (attempt core.SyncAttempt, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("sync attempt panicked", "provider_id", req.ProviderID, "panic", fmt.Sprint(recovered))
			attempt = core.SyncAttempt{
				ProviderID: req.ProviderID,
				Attempt:    req.Attempt,
				Outcome:    core.SyncOutcomeFailure,
				ErrorKind:  core.AdapterErrorTransient,
				Error:      "sync interrupted",
			}
			err = nil
		}
	}()
	return s.runner.RunSync(ctx, req)
}

func (s *Scheduler) stateLocked(providerID string) *instanceState {
	state, ok := s.states[providerID]
	if !ok {
		s.generation++
		state = &instanceState{phase: PhaseIdle, generation: s.generation}
		s.states[providerID] = state
	}
	return state
}

func (s *Scheduler) enqueueLocked(providerID string, state *instanceState) {
	if state.queued {
		return
	}
	state.queued = true
	state.phase = PhaseDue
	s.queue = append(s.queue, providerID)
}

func (s *Scheduler) dequeue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		if state, ok := s.states[id]; ok && state.queued {
			if len(s.queue) > 0 {
				s.signal()
			}
			return id, true
		}
	}
	return "", false
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

var (
	_ core.SyncTrigger   = (*Scheduler)(nil)
	_ core.SyncCanceller = (*Scheduler)(nil)
)
