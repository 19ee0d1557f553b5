// Package core implements the garden application services: collection,
// favorites, chores, schedules, species lookup and images, each wrapped with
// tracing, metrics, audit and logging.
package core

import (
	"context"
	"errors"
	"time"

	"gardenkeep/internal/infra/persistence/memory"
	"gardenkeep/pkg/domain"
)

// SpeciesGateway looks up botanical species.
type SpeciesGateway interface {
	Search(ctx context.Context, q domain.SpeciesQuery) ([]domain.SpeciesSummary, error)
	GetByID(ctx context.Context, id string) (domain.SpeciesSummary, error)
}

// Service exposes the garden operations over a PersistentStore.
type Service struct {
	store   domain.PersistentStore
	species SpeciesGateway
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithSpeciesGateway sets the botanical lookup gateway.
func WithSpeciesGateway(g SpeciesGateway) Option {
	return func(s *Service) { s.species = g }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		clock:   systemClock{},
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock.Now() }

// Today returns the service clock's current calendar date.
func (s *Service) Today() domain.Date { return domain.DateOf(s.clock.Now()) }

// run wraps an operation with a trace span, metrics, logging and (for
// mutations) an audit entry. fn returns the affected entity id.
func (s *Service) run(ctx context.Context, op string, user domain.UserID, fn func(ctx context.Context) (string, error)) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, err := fn(ctx)
	duration := time.Since(started)
	span.End(err)

	benign := errors.Is(err, domain.ErrAlreadyFavorited)
	s.metrics.Observe(ctx, op, err == nil || benign, duration)
	switch {
	case err == nil:
		s.logger.Debug("operation completed", "operation", op, "entity_id", entityID, "duration", duration)
		s.recordAudit(ctx, op, user, entityID, duration, nil)
	case benign:
		s.logger.Info("operation skipped", "operation", op, "reason", err.Error())
	default:
		s.logger.Error("operation failed", "operation", op, "error", err)
		s.recordAudit(ctx, op, user, entityID, duration, err)
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, op string, user domain.UserID, entityID string, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		UserID:    user,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func (s *Service) view(ctx context.Context, user domain.UserID, fn func(domain.TransactionView) error) error {
	return s.store.View(ctx, user, fn)
}

func (s *Service) update(ctx context.Context, user domain.UserID, fn func(domain.Transaction) error) error {
	return s.store.RunInTransaction(ctx, user, fn)
}
