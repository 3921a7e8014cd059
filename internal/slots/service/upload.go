package service

import (
	"context"
	"time"

	"hatchseed/internal/events"
	"hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	audit "hatchseed/pkg/platform/audit"
	txcontext "hatchseed/pkg/platform/tx"
	"hatchseed/pkg/requestcontext"
)

type UploadRequest struct {
	SetID    id.SetID
	Index    int
	MediaRef string
	GeoTag   *models.GeoTag
}

// Upload places media into a slot for the set's owner and returns the
// owner's view of the set after commit.
func (s *Service) Upload(ctx context.Context, owner id.OwnerID, req UploadRequest) (view models.SetView, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Upload", req.SetID)
	defer func() { s.finish(span, "upload", start, err) }()

	now := requestcontext.Now(ctx)
	var completed *models.SlotSet
	err = s.tx.RunInTx(ctx, req.SetID, func(ctx context.Context, store Store) error {
		set, err := load(ctx, store, req.SetID)
		if err != nil {
			return err
		}
		if set.OwnerID != owner {
			return dErrors.New(dErrors.CodeForbidden, "set belongs to another owner")
		}
		if err := s.timing.Upload(set, req.Index, models.UploadInput{MediaRef: req.MediaRef, GeoTag: req.GeoTag}, now); err != nil {
			return err
		}
		if err := save(ctx, store, set); err != nil {
			return err
		}

		view = s.timing.View(set, now)
		if set.IsComplete() {
			completed = set.Clone()
		}
		reviewerKey := id.ReviewerIdentity(set.ReviewerID).Key()
		evt := events.Event{
			Type:      events.TypeSlotUploaded,
			Aggregate: set.ID.String(),
			Payload: events.SlotPayload{
				SetID:    set.ID,
				Index:    req.Index,
				MediaRef: req.MediaRef,
				State:    string(models.StatePending),
			},
			OccurredAt: now,
		}
		txcontext.OnCommit(ctx, func() { s.publish(reviewerKey, evt) })
		return nil
	})
	if err != nil {
		return models.SetView{}, err
	}

	s.metrics.IncrementUploads()
	s.track(ctx, audit.EventSlotUploaded, req.SetID.String(), id.OwnerIdentity(owner), now)
	s.logger.InfoContext(ctx, "slot uploaded",
		"set_id", req.SetID.String(),
		"index", req.Index,
		"request_id", requestcontext.RequestID(ctx),
	)
	if completed != nil && s.notifier != nil {
		if err := s.notifier.SetReadyForReview(ctx, completed); err != nil {
			s.logger.WarnContext(ctx, "failed to notify reviewer of complete set",
				"set_id", req.SetID.String(),
				"error", err,
			)
		}
	}
	return view, nil
}

// Delete erases a slot while its grace window is open (or at any time once
// rejected) and returns the owner's view of the set.
func (s *Service) Delete(ctx context.Context, owner id.OwnerID, setID id.SetID, index int) (view models.SetView, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Delete", setID)
	defer func() { s.finish(span, "delete", start, err) }()

	now := requestcontext.Now(ctx)
	var removed models.UploadSlot
	err = s.tx.RunInTx(ctx, setID, func(ctx context.Context, store Store) error {
		set, err := load(ctx, store, setID)
		if err != nil {
			return err
		}
		if set.OwnerID != owner {
			return dErrors.New(dErrors.CodeForbidden, "set belongs to another owner")
		}
		removed, err = s.timing.Delete(set, index, now)
		if err != nil {
			return err
		}
		if err := save(ctx, store, set); err != nil {
			return err
		}

		view = s.timing.View(set, now)
		reviewerKey := id.ReviewerIdentity(set.ReviewerID).Key()
		evt := events.Event{
			Type:       events.TypeSlotDeleted,
			Aggregate:  set.ID.String(),
			Payload:    events.SlotPayload{SetID: set.ID, Index: index},
			OccurredAt: now,
		}
		txcontext.OnCommit(ctx, func() { s.publish(reviewerKey, evt) })
		return nil
	})
	if err != nil {
		return models.SetView{}, err
	}

	s.metrics.IncrementDeletes()
	s.track(ctx, audit.EventSlotDeleted, setID.String(), id.OwnerIdentity(owner), now)
	s.releaseMedia(ctx, []string{removed.MediaRef})
	return view, nil
}
