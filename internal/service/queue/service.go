// internal/service/queue/service.go
package queue

import (
	"context"
	"errors"
	"fmt"

	"waitlist-service/internal/domain/queue"
	xerrors "waitlist-service/internal/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "waitlist-service/queue"

// Service applies queue intents: it resolves identities, drives the status
// machine through the store's conditional operations and computes positions.
type Service struct {
	queues   QueueStore
	resolver *IdentityResolver
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewService(queues QueueStore, customers CustomerStore, logger *zap.Logger) *Service {
	return &Service{
		queues:   queues,
		resolver: NewIdentityResolver(customers, logger),
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// Join puts the customer identified by phone in the establishment's queue. A
// customer who is already active gets their existing entry back.
func (s *Service) Join(ctx context.Context, establishmentID, name, phone string) (*queue.Entry, error) {
	ctx, span := s.start(ctx, "queue.join", establishmentID)
	defer span.End()

	name, err := queue.NormalizeName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}
	phone, err = queue.NormalizePhone(phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}

	customerID, err := s.resolver.Resolve(ctx, name, phone)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("resolve customer: %w", err))
	}

	entry, created, err := s.queues.InsertIfAbsent(ctx, establishmentID, customerID)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("insert entry: %w", err))
	}
	span.SetAttributes(attribute.Bool("queue.created", created))

	if created {
		s.logger.Info("customer joined queue",
			zap.String("establishment_id", establishmentID),
			zap.String("customer_id", customerID),
			zap.String("entry_id", entry.ID),
		)
	} else {
		s.logger.Debug("duplicate join returned existing entry",
			zap.String("establishment_id", establishmentID),
			zap.String("entry_id", entry.ID),
		)
	}

	// The returned entry carries the position as of this snapshot.
	positioned, err := s.locate(ctx, establishmentID, customerID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			// Completed by staff between insert and read.
			return entry, nil
		}
		return nil, s.fail(span, err)
	}
	return positioned, nil
}

// Call moves a waiting customer to called. applied is false when the entry was
// missing or already past waiting; callers treat that as success.
func (s *Service) Call(ctx context.Context, establishmentID, customerID string) (bool, error) {
	ctx, span := s.start(ctx, "queue.call", establishmentID)
	defer span.End()

	applied, err := s.queues.Transition(ctx, establishmentID, customerID, queue.StatusWaiting, queue.StatusCalled)
	if err != nil {
		return false, s.fail(span, fmt.Errorf("call customer: %w", err))
	}
	span.SetAttributes(attribute.Bool("queue.applied", applied))
	s.logTransition("call", establishmentID, customerID, applied)
	return applied, nil
}

// Complete finishes a customer's active entry from whichever state it is in.
// The loop re-reads after a lost race; states only move forward so it settles
// within a couple of rounds.
func (s *Service) Complete(ctx context.Context, establishmentID, customerID string) (bool, error) {
	ctx, span := s.start(ctx, "queue.complete", establishmentID)
	defer span.End()

	for range queue.ActiveStatuses {
		current, err := s.queues.FindActive(ctx, establishmentID, customerID)
		if errors.Is(err, xerrors.ErrNotFound) {
			s.logTransition("complete", establishmentID, customerID, false)
			return false, nil
		}
		if err != nil {
			return false, s.fail(span, fmt.Errorf("complete customer: %w", err))
		}
		if !queue.CanTransition(current.Status, queue.StatusCompleted) {
			return false, nil
		}

		applied, err := s.queues.Transition(ctx, establishmentID, customerID, current.Status, queue.StatusCompleted)
		if err != nil {
			return false, s.fail(span, fmt.Errorf("complete customer: %w", err))
		}
		if applied {
			span.SetAttributes(attribute.Bool("queue.applied", true))
			s.logTransition("complete", establishmentID, customerID, true)
			return true, nil
		}
	}
	s.logTransition("complete", establishmentID, customerID, false)
	return false, nil
}

// Snapshot returns the active entries with positions assigned.
func (s *Service) Snapshot(ctx context.Context, establishmentID string) ([]queue.Entry, error) {
	ctx, span := s.start(ctx, "queue.snapshot", establishmentID)
	defer span.End()

	entries, err := s.queues.Snapshot(ctx, establishmentID)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("snapshot: %w", err))
	}
	if entries == nil {
		entries = []queue.Entry{}
	}
	queue.AssignPositions(entries)
	span.SetAttributes(attribute.Int("queue.size", len(entries)))
	return entries, nil
}

// Status returns one customer's active entry with its current position, or
// xerrors.ErrNotFound.
func (s *Service) Status(ctx context.Context, establishmentID, customerID string) (*queue.Entry, error) {
	ctx, span := s.start(ctx, "queue.status", establishmentID)
	defer span.End()

	entry, err := s.locate(ctx, establishmentID, customerID)
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, s.fail(span, err)
	}
	return entry, err
}

func (s *Service) locate(ctx context.Context, establishmentID, customerID string) (*queue.Entry, error) {
	entries, err := s.Snapshot(ctx, establishmentID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].CustomerID == customerID {
			e := entries[i]
			return &e, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (s *Service) logTransition(action, establishmentID, customerID string, applied bool) {
	if applied {
		s.logger.Info("queue transition applied",
			zap.String("action", action),
			zap.String("establishment_id", establishmentID),
			zap.String("customer_id", customerID),
		)
		return
	}
	s.logger.Debug("queue transition was a no-op",
		zap.String("action", action),
		zap.String("establishment_id", establishmentID),
		zap.String("customer_id", customerID),
	)
}

func (s *Service) start(ctx context.Context, name, establishmentID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("establishment.id", establishmentID)))
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
