// Package events fans domain notifications out to every live connection of
// an identity.
//
// Delivery is best effort and non-durable: an identity with no connection
// simply misses the event and recovers by pulling state again. Publishing
// never blocks the caller and never reports failure.
package events

import (
	"time"

	id "hatchseed/pkg/domain"
)

// Type names an event in the push catalog.
type Type string

const (
	TypeSlotUploaded       Type = "slot.uploaded"
	TypeSlotDeleted        Type = "slot.deleted"
	TypeSlotModerated      Type = "slot.moderated"
	TypeSetReset           Type = "set.reset"
	TypeMessageAdded       Type = "message.added"
	TypeConversationClosed Type = "conversation.closed"
	TypeBroadcastPosted    Type = "broadcast.posted"
	TypeBroadcastRetracted Type = "broadcast.retracted"

	// TypeLagged is sent to a connection just before it is dropped for
	// falling behind.
	TypeLagged Type = "connection.lagged"
)

// Event is one push notification. Aggregate is the ID of the set,
// conversation or broadcast the event concerns.
type Event struct {
	Type       Type      `json:"type"`
	Aggregate  string    `json:"aggregate"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(key id.IdentityKey, evt Event)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(id.IdentityKey, Event) {}

// ResetReason distinguishes the two ways a set is cleared.
type ResetReason string

const (
	ResetApproved ResetReason = "approved"
	ResetDeleted  ResetReason = "deleted"
)

// SlotPayload accompanies slot.uploaded, slot.deleted and slot.moderated.
type SlotPayload struct {
	SetID    id.SetID `json:"set_id"`
	Index    int      `json:"index"`
	MediaRef string   `json:"media_ref,omitempty"`
	State    string   `json:"state,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// SetResetPayload accompanies set.reset.
type SetResetPayload struct {
	SetID         id.SetID          `json:"set_id"`
	Reason        ResetReason       `json:"reason"`
	TransactionID *id.TransactionID `json:"transaction_id,omitempty"`
}

// MessagePayload accompanies message.added.
type MessagePayload struct {
	ConversationID id.ConversationID `json:"conversation_id"`
	Seq            int64             `json:"seq"`
	Sender         id.Role           `json:"sender"`
	Body           string            `json:"body"`
	SentAt         time.Time         `json:"sent_at"`
}

// ConversationClosedPayload accompanies conversation.closed.
type ConversationClosedPayload struct {
	ConversationID id.ConversationID `json:"conversation_id"`
	ClosedBy       id.Role           `json:"closed_by"`
}

// BroadcastPayload accompanies broadcast.posted and broadcast.retracted.
type BroadcastPayload struct {
	BroadcastID id.BroadcastID `json:"broadcast_id"`
	Message     string         `json:"message,omitempty"`
	Priority    string         `json:"priority,omitempty"`
}
