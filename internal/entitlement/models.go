// Package entitlement tracks how many record sets an owner is allowed to
// submit. A reviewer-initiated DeleteAndReset revokes the allocation; a
// replenishment restores it and reopens the owner's sets for upload.
package entitlement

import (
	"time"

	id "hatchseed/pkg/domain"
)

type Allocation struct {
	OwnerID   id.OwnerID `json:"owner_id"`
	Remaining int        `json:"remaining"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsRevoked reports whether the last change was a revocation.
func (a *Allocation) IsRevoked() bool {
	return a.RevokedAt != nil && a.Remaining == 0
}
