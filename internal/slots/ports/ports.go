// Package ports declares what the slot workflow needs from collaborators it
// does not own. Adapters in ../adapters bind them to in-process services.
package ports

import (
	"context"
	"time"

	"hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
)

// Sale is the snapshot handed to the ledger when a set is approved.
type Sale struct {
	SetID      id.SetID
	RecordName string
	OwnerID    id.OwnerID
	ReviewerID id.ReviewerID
	Slots      [models.SlotCount]models.UploadSlot
}

// TransactionLedger records approved sets. VoidSale compensates a sale whose
// surrounding commit failed when no database transaction covers both.
type TransactionLedger interface {
	RecordSale(ctx context.Context, sale Sale) (id.TransactionID, error)
	VoidSale(ctx context.Context, txnID id.TransactionID) error
}

// Allowance is an owner's submission allowance as it stood before a
// revocation replaced it.
type Allowance struct {
	Remaining int
	RevokedAt *time.Time
	UpdatedAt time.Time
}

// Entitlements revokes an owner's submission allowance. Restore puts back
// what Revoke replaced when the surrounding commit fails and no database
// transaction covers both.
type Entitlements interface {
	Revoke(ctx context.Context, owner id.OwnerID) (Allowance, error)
	Restore(ctx context.Context, owner id.OwnerID, prev Allowance) error
}

// MediaStore releases the objects behind media references.
type MediaStore interface {
	Delete(ctx context.Context, mediaRef string) error
}

// Notifier posts feed notifications about set progress.
type Notifier interface {
	SetReadyForReview(ctx context.Context, set *models.SlotSet) error
	SetApproved(ctx context.Context, set *models.SlotSet, txnID id.TransactionID) error
}

// RelatedPurger drops content that refers to a set once the set has been
// approved or reset: help conversations, stale notifications.
type RelatedPurger interface {
	PurgeRelated(ctx context.Context, setID id.SetID) (int, error)
}
