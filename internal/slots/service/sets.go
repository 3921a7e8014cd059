package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	audit "hatchseed/pkg/platform/audit"
	"hatchseed/pkg/requestcontext"
)

type OpenRequest struct {
	// SetID is optional; a new one is generated when nil.
	SetID      id.SetID
	RecordName string
	OwnerID    id.OwnerID
	ReviewerID id.ReviewerID
}

// Open creates an empty set. Record creation proper happens in the system
// that owns production records; this registers the set for upload.
func (s *Service) Open(ctx context.Context, req OpenRequest) (set *models.SlotSet, err error) {
	if req.SetID.IsNil() {
		req.SetID = id.SetID(uuid.New())
	}
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Open", req.SetID)
	defer func() { s.finish(span, "open", start, err) }()

	now := requestcontext.Now(ctx)
	set, err = models.NewSlotSet(req.SetID, req.RecordName, req.OwnerID, req.ReviewerID, now)
	if err != nil {
		msg := "invalid set"
		var de *dErrors.Error
		if errors.As(err, &de) {
			msg = de.Message
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, msg)
	}
	if err := s.store.Create(ctx, set); err != nil {
		return nil, translateStoreErr(err, "failed to create set")
	}
	s.track(ctx, audit.EventSetOpened, set.ID.String(), id.ReviewerIdentity(req.ReviewerID), now)
	return set, nil
}

// Replenish lifts the upload lock on every set of the owner. It returns how
// many sets were reopened.
func (s *Service) Replenish(ctx context.Context, owner id.OwnerID) (int, error) {
	sets, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sets")
	}
	now := requestcontext.Now(ctx)
	reopened := 0
	for _, candidate := range sets {
		if !candidate.AwaitingReplenishment {
			continue
		}
		changed := false
		err := s.tx.RunInTx(ctx, candidate.ID, func(ctx context.Context, store Store) error {
			set, err := load(ctx, store, candidate.ID)
			if err != nil {
				return err
			}
			if !set.Replenish(now) {
				return nil
			}
			changed = true
			return save(ctx, store, set)
		})
		if err != nil {
			return reopened, err
		}
		if changed {
			reopened++
		}
	}
	return reopened, nil
}

// Get returns one set projected for the caller: owners see their full set
// with eligibility, reviewers see only slots past the grace window.
func (s *Service) Get(ctx context.Context, who id.Identity, setID id.SetID) (models.SetView, error) {
	set, err := load(ctx, s.store, setID)
	if err != nil {
		return models.SetView{}, err
	}
	now := requestcontext.Now(ctx)
	switch {
	case who.Role == id.RoleOwner && set.OwnerID == who.OwnerID():
		return s.timing.View(set, now), nil
	case who.Role == id.RoleReviewer && set.ReviewerID == who.ReviewerID():
		return s.timing.ReviewerView(set, now), nil
	default:
		return models.SetView{}, dErrors.New(dErrors.CodeNotFound, "set not found")
	}
}

func (s *Service) ListForOwner(ctx context.Context, owner id.OwnerID) ([]models.SetView, error) {
	sets, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sets")
	}
	now := requestcontext.Now(ctx)
	views := make([]models.SetView, 0, len(sets))
	for _, set := range sets {
		views = append(views, s.timing.View(set, now))
	}
	return views, nil
}

func (s *Service) ListForReviewer(ctx context.Context, reviewer id.ReviewerID) ([]models.SetView, error) {
	sets, err := s.store.ListByReviewer(ctx, reviewer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sets")
	}
	now := requestcontext.Now(ctx)
	views := make([]models.SetView, 0, len(sets))
	for _, set := range sets {
		views = append(views, s.timing.ReviewerView(set, now))
	}
	return views, nil
}

// OwnersForReviewer lists the distinct owners whose sets the reviewer holds.
func (s *Service) OwnersForReviewer(ctx context.Context, reviewer id.ReviewerID) ([]id.OwnerID, error) {
	owners, err := s.store.OwnersForReviewer(ctx, reviewer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list owners")
	}
	return owners, nil
}
