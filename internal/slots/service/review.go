package service

import (
	"context"
	"time"

	"hatchseed/internal/events"
	"hatchseed/internal/slots/models"
	"hatchseed/internal/slots/ports"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	audit "hatchseed/pkg/platform/audit"
	txcontext "hatchseed/pkg/platform/tx"
	"hatchseed/pkg/requestcontext"
)

type DecideRequest struct {
	SetID   id.SetID
	Index   int
	Action  models.Action
	Message string
}

func authorizeReviewer(set *models.SlotSet, reviewer id.Identity) error {
	if reviewer.Role != id.RoleReviewer || set.ReviewerID != reviewer.ReviewerID() {
		return dErrors.New(dErrors.CodeForbidden, "set is assigned to another reviewer")
	}
	return nil
}

// Decide records a per-slot verdict. Slots still inside the owner's grace
// window are invisible to reviewers and count as empty here.
func (s *Service) Decide(ctx context.Context, reviewer id.Identity, req DecideRequest) (view models.SetView, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Decide", req.SetID)
	defer func() { s.finish(span, "decide", start, err) }()

	if !req.Action.IsValid() {
		return models.SetView{}, dErrors.New(dErrors.CodeInvalidInput, "action must be approve or decline")
	}
	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, req.SetID, func(ctx context.Context, store Store) error {
		set, err := load(ctx, store, req.SetID)
		if err != nil {
			return err
		}
		if err := authorizeReviewer(set, reviewer); err != nil {
			return err
		}
		if req.Index >= 0 && req.Index < models.SlotCount && s.timing.InGraceWindow(set.Slots[req.Index], now) {
			return dErrors.New(dErrors.CodeNothingToReview, "slot is still inside the owner's grace window")
		}
		err = set.Moderate(req.Index, models.Feedback{
			Action:       req.Action,
			Message:      req.Message,
			ReviewerID:   reviewer.ReviewerID(),
			ReviewerName: reviewer.Name,
			ReviewedAt:   now,
		})
		if err != nil {
			return err
		}
		err = s.compliance.Emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			Subject:   set.ID.String(),
			Action:    audit.EventSlotModerated,
			OwnerID:   set.OwnerID.String(),
			ActorID:   string(reviewer.Key()),
			Decision:  string(req.Action),
			RequestID: requestcontext.RequestID(ctx),
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeSideEffectFailed, "failed to audit moderation")
		}
		if err := save(ctx, store, set); err != nil {
			return err
		}

		view = s.timing.ReviewerView(set, now)
		ownerKey := id.OwnerIdentity(set.OwnerID).Key()
		evt := events.Event{
			Type:      events.TypeSlotModerated,
			Aggregate: set.ID.String(),
			Payload: events.SlotPayload{
				SetID:   set.ID,
				Index:   req.Index,
				State:   string(req.Action.State()),
				Message: req.Message,
			},
			OccurredAt: now,
		}
		txcontext.OnCommit(ctx, func() { s.publish(ownerKey, evt) })
		return nil
	})
	if err != nil {
		return models.SetView{}, err
	}
	s.metrics.IncrementModerations(string(req.Action))
	return view, nil
}

// ApproveResult identifies the recorded transaction.
type ApproveResult struct {
	TransactionID id.TransactionID `json:"transaction_id"`
	Set           models.SetView   `json:"set"`
}

// Approve records a transaction for a complete set and clears it. The ledger
// entry, the compliance event and the reset commit together; when no
// database transaction spans them the ledger entry is voided on failure.
func (s *Service) Approve(ctx context.Context, reviewer id.Identity, setID id.SetID) (result ApproveResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Approve", setID)
	defer func() { s.finish(span, "approve", start, err) }()

	now := requestcontext.Now(ctx)
	var approved *models.SlotSet
	err = s.tx.RunInTx(ctx, setID, func(ctx context.Context, store Store) error {
		set, err := load(ctx, store, setID)
		if err != nil {
			return err
		}
		if err := authorizeReviewer(set, reviewer); err != nil {
			return err
		}
		if !set.IsComplete() {
			return dErrors.New(dErrors.CodeIncompleteSet, "all four slots must be filled before approval")
		}
		for _, slot := range set.Slots {
			if s.timing.InGraceWindow(slot, now) {
				return dErrors.New(dErrors.CodeIncompleteSet, "a slot is still inside the owner's grace window")
			}
		}

		txnID, err := s.ledger.RecordSale(ctx, ports.Sale{
			SetID:      set.ID,
			RecordName: set.RecordName,
			OwnerID:    set.OwnerID,
			ReviewerID: set.ReviewerID,
			Slots:      set.Slots,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeSideEffectFailed, "failed to record transaction")
		}

		err = s.compliance.Emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			Subject:   set.ID.String(),
			Action:    audit.EventSetApproved,
			OwnerID:   set.OwnerID.String(),
			ActorID:   string(reviewer.Key()),
			Decision:  txnID.String(),
			RequestID: requestcontext.RequestID(ctx),
		})
		if err != nil {
			s.compensateSale(ctx, txnID)
			return dErrors.Wrap(err, dErrors.CodeSideEffectFailed, "failed to audit approval")
		}

		approved = set.Clone()
		set.Reset(false, now)
		if err := save(ctx, store, set); err != nil {
			s.compensateSale(ctx, txnID)
			return err
		}

		result = ApproveResult{TransactionID: txnID, Set: s.timing.ReviewerView(set, now)}
		ownerKey := id.OwnerIdentity(set.OwnerID).Key()
		evt := events.Event{
			Type:      events.TypeSetReset,
			Aggregate: set.ID.String(),
			Payload: events.SetResetPayload{
				SetID:         set.ID,
				Reason:        events.ResetApproved,
				TransactionID: &txnID,
			},
			OccurredAt: now,
		}
		txcontext.OnCommit(ctx, func() { s.publish(ownerKey, evt) })
		return nil
	})
	if err != nil {
		return ApproveResult{}, err
	}

	s.metrics.IncrementResets(string(events.ResetApproved))
	s.logger.InfoContext(ctx, "set approved",
		"set_id", setID.String(),
		"transaction_id", result.TransactionID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	// Purge first so the approval notice is not swept with the set's older
	// notifications.
	s.purgeRelated(ctx, setID)
	if s.notifier != nil {
		if err := s.notifier.SetApproved(ctx, approved, result.TransactionID); err != nil {
			s.logger.WarnContext(ctx, "failed to notify owner of approval",
				"set_id", setID.String(),
				"error", err,
			)
		}
	}
	return result, nil
}

// purgeRelated drops conversations and notifications about a set that has
// just been cleared. It runs after commit; failures are logged and the
// retention workers catch what is left.
func (s *Service) purgeRelated(ctx context.Context, setID id.SetID) {
	for _, p := range s.purgers {
		if _, err := p.PurgeRelated(ctx, setID); err != nil {
			s.logger.WarnContext(ctx, "failed to purge content related to set",
				"set_id", setID.String(),
				"error", err,
			)
		}
	}
}

// restoreAllowance puts back an allocation revoked by an aborted reset.
// Inside a database transaction the rollback already restores it.
func (s *Service) restoreAllowance(ctx context.Context, owner id.OwnerID, prev ports.Allowance) {
	if _, inTx := txcontext.From(ctx); inTx {
		return
	}
	if err := s.entitlements.Restore(ctx, owner, prev); err != nil {
		s.logger.ErrorContext(ctx, "failed to restore allocation after aborted reset",
			"owner_id", owner.String(),
			"error", err,
		)
	}
}

// compensateSale voids a recorded sale when the surrounding commit will not
// happen. Inside a database transaction the rollback already discards it.
func (s *Service) compensateSale(ctx context.Context, txnID id.TransactionID) {
	if _, inTx := txcontext.From(ctx); inTx {
		return
	}
	if err := s.ledger.VoidSale(ctx, txnID); err != nil {
		s.logger.ErrorContext(ctx, "failed to void transaction after aborted approval",
			"transaction_id", txnID.String(),
			"error", err,
		)
	}
}

// DeleteAndReset discards a set's uploads, revokes the owner's allocation
// and blocks further uploads until it is replenished. Without a database
// transaction a failed save restores the allocation. Media objects and
// related content are released after commit.
func (s *Service) DeleteAndReset(ctx context.Context, reviewer id.Identity, setID id.SetID) (view models.SetView, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "DeleteAndReset", setID)
	defer func() { s.finish(span, "delete_and_reset", start, err) }()

	now := requestcontext.Now(ctx)
	var refs []string
	err = s.tx.RunInTx(ctx, setID, func(ctx context.Context, store Store) error {
		set, err := load(ctx, store, setID)
		if err != nil {
			return err
		}
		if err := authorizeReviewer(set, reviewer); err != nil {
			return err
		}

		err = s.compliance.Emit(ctx, audit.ComplianceEvent{
			Timestamp: now,
			Subject:   set.ID.String(),
			Action:    audit.EventSetReset,
			OwnerID:   set.OwnerID.String(),
			ActorID:   string(reviewer.Key()),
			Decision:  string(events.ResetDeleted),
			RequestID: requestcontext.RequestID(ctx),
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeSideEffectFailed, "failed to audit reset")
		}
		prev, err := s.entitlements.Revoke(ctx, set.OwnerID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeSideEffectFailed, "failed to revoke allocation")
		}

		refs = set.MediaRefs()
		set.Reset(true, now)
		if err := save(ctx, store, set); err != nil {
			s.restoreAllowance(ctx, set.OwnerID, prev)
			return err
		}

		view = s.timing.ReviewerView(set, now)
		ownerKey := id.OwnerIdentity(set.OwnerID).Key()
		evt := events.Event{
			Type:       events.TypeSetReset,
			Aggregate:  set.ID.String(),
			Payload:    events.SetResetPayload{SetID: set.ID, Reason: events.ResetDeleted},
			OccurredAt: now,
		}
		txcontext.OnCommit(ctx, func() { s.publish(ownerKey, evt) })
		return nil
	})
	if err != nil {
		return models.SetView{}, err
	}

	s.metrics.IncrementResets(string(events.ResetDeleted))
	s.releaseMedia(ctx, refs)
	s.purgeRelated(ctx, setID)
	return view, nil
}
