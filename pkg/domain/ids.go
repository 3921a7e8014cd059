// Package domain holds the typed identifiers shared across modules.
//
// Every identifier is a distinct named UUID type so an OwnerID can never be
// passed where a ReviewerID is expected. Construct them with the Parse*
// functions at trust boundaries; direct conversion skips validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "hatchseed/pkg/domain-errors"
)

type (
	OwnerID        uuid.UUID
	ReviewerID     uuid.UUID
	SetID          uuid.UUID
	ConversationID uuid.UUID
	TransactionID  uuid.UUID
	NotificationID uuid.UUID
	BroadcastID    uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) != 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

// ParseOwnerID validates an owner identifier from external input.
func ParseOwnerID(s string) (OwnerID, error) {
	u, err := parseUUID(s, "owner id")
	return OwnerID(u), err
}

// ParseReviewerID validates a reviewer identifier from external input.
func ParseReviewerID(s string) (ReviewerID, error) {
	u, err := parseUUID(s, "reviewer id")
	return ReviewerID(u), err
}

// ParseSetID validates a slot set identifier from external input.
func ParseSetID(s string) (SetID, error) {
	u, err := parseUUID(s, "set id")
	return SetID(u), err
}

// ParseConversationID validates a conversation identifier from external input.
func ParseConversationID(s string) (ConversationID, error) {
	u, err := parseUUID(s, "conversation id")
	return ConversationID(u), err
}

// ParseTransactionID validates a transaction identifier from external input.
func ParseTransactionID(s string) (TransactionID, error) {
	u, err := parseUUID(s, "transaction id")
	return TransactionID(u), err
}

// ParseBroadcastID validates a broadcast identifier from external input.
func ParseBroadcastID(s string) (BroadcastID, error) {
	u, err := parseUUID(s, "broadcast id")
	return BroadcastID(u), err
}

func (id OwnerID) String() string        { return uuid.UUID(id).String() }
func (id ReviewerID) String() string     { return uuid.UUID(id).String() }
func (id SetID) String() string          { return uuid.UUID(id).String() }
func (id ConversationID) String() string { return uuid.UUID(id).String() }
func (id TransactionID) String() string  { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id BroadcastID) String() string    { return uuid.UUID(id).String() }

func (id OwnerID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ReviewerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id SetID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id ConversationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id BroadcastID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText keeps typed IDs readable in JSON payloads.
func (id OwnerID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id ReviewerID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id SetID) MarshalText() ([]byte, error)          { return []byte(id.String()), nil }
func (id ConversationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id TransactionID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id NotificationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id BroadcastID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

// unmarshalUUID backs UnmarshalText. It validates like the Parse functions
// but accepts the nil UUID so a zero ID written by MarshalText reads back.
// Callers that need a non-nil ID check IsNil after decoding.
func unmarshalUUID(b []byte, kind string) (uuid.UUID, error) {
	if string(b) == uuid.Nil.String() {
		return uuid.Nil, nil
	}
	return parseUUID(string(b), kind)
}

func (id *OwnerID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b, "owner id")
	*id = OwnerID(u)
	return err
}

func (id *ReviewerID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b, "reviewer id")
	*id = ReviewerID(u)
	return err
}

func (id *SetID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b, "set id")
	*id = SetID(u)
	return err
}

func (id *ConversationID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b, "conversation id")
	*id = ConversationID(u)
	return err
}

func (id *TransactionID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b, "transaction id")
	*id = TransactionID(u)
	return err
}

func (id *NotificationID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b, "notification id")
	*id = NotificationID(u)
	return err
}

func (id *BroadcastID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b, "broadcast id")
	*id = BroadcastID(u)
	return err
}
