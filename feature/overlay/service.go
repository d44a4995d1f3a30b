package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"overlay-engine/feature/catalog"
	"overlay-engine/feature/pricing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRunInProgress is returned when a run is requested while one is active.
	ErrRunInProgress = errors.New("an overlay run is already in progress")
	// ErrTierForbidden is returned when a caller asks for a tier above its privilege.
	ErrTierForbidden = errors.New("tier not available for this privilege")
	// ErrUnknownTier is returned for tier names that do not exist.
	ErrUnknownTier = errors.New("unknown tier")
)

// Runner executes overlay runs.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (*RunSummary, error)
}

// Status describes the run state of the service.
type Status struct {
	Running    bool        `json:"running"`
	CurrentRun string      `json:"current_run,omitempty"`
	LastRun    *RunSummary `json:"last_run,omitempty"`
	LastError  string      `json:"last_error,omitempty"`
}

// Service serves overlays and serializes runs.
type Service struct {
	runner Runner
	store  Store
	logger *zap.Logger

	running atomic.Bool
	mu      sync.RWMutex
	current string
	last    *RunSummary
	lastErr error
}

// NewService creates an overlay service.
func NewService(runner Runner, store Store, logger *zap.Logger) *Service {
	return &Service{runner: runner, store: store, logger: logger}
}

// Run executes one run synchronously.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	return s.execute(ctx, opts)
}

// Trigger starts a run in the background and returns its id.
func (s *Service) Trigger(opts RunOptions) (string, error) {
	if !s.running.CompareAndSwap(false, true) {
		return "", ErrRunInProgress
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	go func() {
		if _, err := s.execute(context.Background(), opts); err != nil {
			s.logger.Error("Triggered run failed", zap.String("run_id", opts.ID), zap.Error(err))
		}
	}()
	return opts.ID, nil
}

// execute runs with the running flag already held.
func (s *Service) execute(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	defer s.running.Store(false)
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.current = opts.ID
	s.mu.Unlock()

	summary, err := s.runner.Run(ctx, opts)

	s.mu.Lock()
	s.current = ""
	s.lastErr = err
	if summary != nil {
		s.last = summary
	}
	s.mu.Unlock()
	return summary, err
}

// Status returns the current run state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{Running: s.running.Load(), CurrentRun: s.current, LastRun: s.last}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Overlay returns the stored overlay of a table for a caller. requested may be
// empty, in which case the freshest tier the privilege allows is served.
func (s *Service) Overlay(ctx context.Context, target catalog.Target, privilege, requested string) (*Record, error) {
	tier := pricing.TierForPrivilege(privilege)
	if requested != "" {
		t, ok := pricing.ParseTier(requested)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownTier, requested)
		}
		if !pricing.CanRead(privilege, t) {
			return nil, ErrTierForbidden
		}
		tier = t
	}
	return s.store.Get(ctx, target, tier)
}
