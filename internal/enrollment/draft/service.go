package draft

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"careon/internal/enrollment/metrics"
	"careon/internal/enrollment/models"
	"careon/internal/enrollment/steps"
	id "careon/pkg/domain"
	dErrors "careon/pkg/domain-errors"
	"careon/pkg/platform/sentinel"
	"careon/pkg/requestcontext"
)

const (
	DefaultDebounceDelay = 3 * time.Second
	writeTimeout         = 5 * time.Second
)

type pendingWrite struct {
	timer *time.Timer
	snap  Snapshot
}

// ownerLock serializes store access for one owner. refs counts holders and
// waiters so the entry can be dropped once idle.
type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// Service debounces autosave writes per owner: a burst of edits produces one
// store write, delay after the last edit.
type Service struct {
	store   Store
	catalog *steps.Catalog
	delay   time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending map[id.UserID]*pendingWrite
	owners  map[id.UserID]*ownerLock
	writes  sync.WaitGroup
	closed  bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithDebounceDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.delay = d
		}
	}
}

func NewService(store Store, catalog *steps.Catalog, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: catalog,
		delay:   DefaultDebounceDelay,
		logger:  slog.Default(),
		pending: make(map[id.UserID]*pendingWrite),
		owners:  make(map[id.UserID]*ownerLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input is one autosave request.
type Input struct {
	Data      models.FormData
	StepIndex int
	UserAgent string
}

func (s *Service) snapshot(ctx context.Context, in Input) (Snapshot, error) {
	if _, ok := s.catalog.Step(in.StepIndex); !ok {
		return Snapshot{}, dErrors.Newf(dErrors.CodeValidation, "step_index must be between 0 and %d", s.catalog.Len()-1)
	}
	return Snapshot{
		Data:      in.Data,
		StepIndex: in.StepIndex,
		SavedAt:   requestcontext.Now(ctx),
		Version:   FormatVersion,
		Device:    DeviceLabel(in.UserAgent),
	}, nil
}

// Autosave schedules a debounced write and returns the snapshot that will be
// stored unless a newer one replaces it first.
func (s *Service) Autosave(ctx context.Context, owner id.UserID, in Input) (Snapshot, error) {
	snap, err := s.snapshot(ctx, in)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, dErrors.New(dErrors.CodeInternal, "draft autosave is shutting down")
	}
	if p, ok := s.pending[owner]; ok {
		p.snap = snap
		if p.timer.Stop() {
			p.timer.Reset(s.delay)
			return snap, nil
		}
	}
	p := &pendingWrite{snap: snap}
	p.timer = time.AfterFunc(s.delay, func() { s.fire(owner, p) })
	s.pending[owner] = p
	return snap, nil
}

// lockOwner blocks until no other store operation for owner is running.
// Lock order is owner lock, then s.mu.
func (s *Service) lockOwner(owner id.UserID) (unlock func()) {
	s.mu.Lock()
	l, ok := s.owners[owner]
	if !ok {
		l = &ownerLock{}
		s.owners[owner] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.owners, owner)
		}
		s.mu.Unlock()
	}
}

// fire writes p if it is still the owner's pending write. The owner lock is
// held across the store call so Discard, Flush and Restore observe it.
func (s *Service) fire(owner id.UserID, p *pendingWrite) {
	unlock := s.lockOwner(owner)
	defer unlock()

	s.mu.Lock()
	if s.pending[owner] != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, owner)
	snap := p.snap
	s.writes.Add(1)
	s.mu.Unlock()

	defer s.writes.Done()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	s.write(ctx, owner, snap)
}

func (s *Service) write(ctx context.Context, owner id.UserID, snap Snapshot) error {
	if err := s.store.Save(ctx, owner, snap); err != nil {
		s.metrics.IncDraftSave("error")
		s.logger.WarnContext(ctx, "draft autosave failed", "owner_id", owner.String(), "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save draft")
	}
	s.metrics.IncDraftSave("ok")
	return nil
}

// takePending cancels and returns the owner's pending write, if any.
func (s *Service) takePending(owner id.UserID) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[owner]
	if !ok {
		return Snapshot{}, false
	}
	p.timer.Stop()
	delete(s.pending, owner)
	return p.snap, true
}

// SaveNow writes immediately, superseding any pending write.
func (s *Service) SaveNow(ctx context.Context, owner id.UserID, in Input) (Snapshot, error) {
	snap, err := s.snapshot(ctx, in)
	if err != nil {
		return Snapshot{}, err
	}
	unlock := s.lockOwner(owner)
	defer unlock()
	s.takePending(owner)
	if err := s.write(ctx, owner, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Flush writes the owner's pending snapshot now, after any write already in
// flight.
func (s *Service) Flush(ctx context.Context, owner id.UserID) error {
	unlock := s.lockOwner(owner)
	defer unlock()
	return s.flushLocked(ctx, owner)
}

func (s *Service) flushLocked(ctx context.Context, owner id.UserID) error {
	snap, ok := s.takePending(owner)
	if !ok {
		return nil
	}
	return s.write(ctx, owner, snap)
}

// Restore returns the latest snapshot, including one not yet written.
func (s *Service) Restore(ctx context.Context, owner id.UserID) (Snapshot, error) {
	unlock := s.lockOwner(owner)
	defer unlock()
	if err := s.flushLocked(ctx, owner); err != nil {
		return Snapshot{}, err
	}
	snap, err := s.store.Load(ctx, owner)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Snapshot{}, dErrors.New(dErrors.CodeNotFound, "no saved draft")
		}
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load draft")
	}
	return snap, nil
}

// Discard drops pending and stored drafts, typically after a submission. A
// write already in flight finishes first and is then cleared.
func (s *Service) Discard(ctx context.Context, owner id.UserID) error {
	unlock := s.lockOwner(owner)
	defer unlock()
	s.takePending(owner)
	if err := s.store.Clear(ctx, owner); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear draft")
	}
	return nil
}

// Close flushes every pending write and refuses new ones.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	pending := s.pending
	s.pending = make(map[id.UserID]*pendingWrite)
	for _, p := range pending {
		p.timer.Stop()
	}
	s.mu.Unlock()

	var errs []error
	for owner, p := range pending {
		unlock := s.lockOwner(owner)
		if err := s.write(ctx, owner, p.snap); err != nil {
			errs = append(errs, err)
		}
		unlock()
	}

	done := make(chan struct{})
	go func() {
		s.writes.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
