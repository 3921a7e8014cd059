package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "hatchseed/pkg/domain-errors"
)

// Role is the side of the review relationship an identity acts on.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleReviewer Role = "reviewer"
)

func (r Role) IsValid() bool {
	return r == RoleOwner || r == RoleReviewer
}

// IdentityKey addresses every live connection of one identity,
// formatted as "<role>:<uuid>".
type IdentityKey string

// Identity is an authenticated principal.
type Identity struct {
	Role Role
	ID   uuid.UUID
	Name string
}

// OwnerIdentity builds the identity of a record owner.
func OwnerIdentity(id OwnerID) Identity {
	return Identity{Role: RoleOwner, ID: uuid.UUID(id)}
}

// ReviewerIdentity builds the identity of a reviewer.
func ReviewerIdentity(id ReviewerID) Identity {
	return Identity{Role: RoleReviewer, ID: uuid.UUID(id)}
}

func (i Identity) Key() IdentityKey {
	return IdentityKey(string(i.Role) + ":" + i.ID.String())
}

func (i Identity) IsZero() bool {
	return i.Role == "" && i.ID == uuid.Nil
}

func (i Identity) OwnerID() OwnerID       { return OwnerID(i.ID) }
func (i Identity) ReviewerID() ReviewerID { return ReviewerID(i.ID) }

// ParseIdentityKey reverses Identity.Key.
func ParseIdentityKey(s string) (Identity, error) {
	role, raw, ok := strings.Cut(s, ":")
	if !ok || !Role(role).IsValid() {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "invalid identity key")
	}
	u, err := parseUUID(raw, "identity id")
	if err != nil {
		return Identity{}, err
	}
	return Identity{Role: Role(role), ID: u}, nil
}
