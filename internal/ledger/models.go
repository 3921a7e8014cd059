// Package ledger records one transaction per approved slot set. Rows are
// immutable once written; a compensating void is the only mutation.
package ledger

import (
	"time"

	"hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
)

// Transaction is the snapshot of a set at the moment it was approved.
type Transaction struct {
	ID            id.TransactionID                    `json:"id"`
	SetID         id.SetID                            `json:"set_id"`
	RecordName    string                              `json:"record_name"`
	OwnerID       id.OwnerID                          `json:"owner_id"`
	ReviewerID    id.ReviewerID                       `json:"reviewer_id"`
	Slots         [models.SlotCount]models.UploadSlot `json:"slots"`
	FirstUploadAt time.Time                           `json:"first_upload_at"`
	LastUploadAt  time.Time                           `json:"last_upload_at"`
	RecordedAt    time.Time                           `json:"recorded_at"`
	VoidedAt      *time.Time                          `json:"voided_at,omitempty"`
}

// Sale is the input to RecordSale.
type Sale struct {
	SetID      id.SetID
	RecordName string
	OwnerID    id.OwnerID
	ReviewerID id.ReviewerID
	Slots      [models.SlotCount]models.UploadSlot
}

func (t *Transaction) IsVoided() bool {
	return t.VoidedAt != nil
}
