package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	audit "hatchseed/pkg/platform/audit"
	"hatchseed/pkg/platform/sentinel"
	"hatchseed/pkg/requestcontext"
)

// SetReplenisher reopens an owner's sets once the allocation is restored.
type SetReplenisher interface {
	Replenish(ctx context.Context, owner id.OwnerID) (int, error)
}

// ComplianceAuditor persists events that must not be lost.
type ComplianceAuditor interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

type Service struct {
	store       Store
	replenisher SetReplenisher
	auditor     ComplianceAuditor
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditor(a ComplianceAuditor) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReplenisher is injected after construction because the slots service
// itself depends on this one for revocation.
func (s *Service) SetReplenisher(r SetReplenisher) {
	s.replenisher = r
}

// Get returns the owner's allocation. Owners with no record have nothing
// remaining.
func (s *Service) Get(ctx context.Context, owner id.OwnerID) (*Allocation, error) {
	alloc, err := s.store.Get(ctx, owner)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &Allocation{OwnerID: owner}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load allocation")
	}
	return alloc, nil
}

// Revoke zeroes the owner's allocation and returns what it replaced. It
// joins the caller's transaction.
func (s *Service) Revoke(ctx context.Context, owner id.OwnerID) (*Allocation, error) {
	prev, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	err = s.store.Upsert(ctx, &Allocation{
		OwnerID:   owner,
		Remaining: 0,
		RevokedAt: &now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke allocation")
	}
	return prev, nil
}

// Restore writes back an allocation returned by Revoke. Callers use it to
// undo a revocation whose surrounding commit failed outside a database
// transaction.
func (s *Service) Restore(ctx context.Context, prev *Allocation) error {
	if err := s.store.Upsert(ctx, prev); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore allocation")
	}
	return nil
}

// Replenish grants count submissions and clears the awaiting flag on every
// set the owner holds.
func (s *Service) Replenish(ctx context.Context, owner id.OwnerID, count int) (*Allocation, error) {
	if count <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "count must be positive")
	}
	now := requestcontext.Now(ctx)
	alloc := &Allocation{OwnerID: owner, Remaining: count, UpdatedAt: now}
	if err := s.store.Upsert(ctx, alloc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to replenish allocation")
	}

	if s.auditor != nil {
		err := s.auditor.Emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			Subject:   owner.String(),
			Action:    audit.EventAllocation,
			OwnerID:   owner.String(),
			ActorID:   string(requestcontext.Identity(ctx).Key()),
			Decision:  strconv.Itoa(count),
			RequestID: requestcontext.RequestID(ctx),
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit replenishment")
		}
	}

	if s.replenisher != nil {
		reopened, err := s.replenisher.Replenish(ctx, owner)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeSideEffectFailed, "failed to reopen sets")
		}
		s.logger.InfoContext(ctx, "allocation replenished",
			"owner_id", owner.String(),
			"count", count,
			"sets_reopened", reopened,
		)
	}
	return alloc, nil
}
