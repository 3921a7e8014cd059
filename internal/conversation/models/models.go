// Package models holds the conversation thread aggregate. A conversation is
// created with its first message and is inert once closed.
package models

import (
	"strings"
	"time"

	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
)

// MaxBodyLength bounds a single message.
const MaxBodyLength = 4000

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Message is immutable once appended. Seq starts at 1 and is assigned by
// the server together with SentAt.
type Message struct {
	Seq        int64     `json:"seq"`
	Sender     id.Role   `json:"sender"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

type Conversation struct {
	ID           id.ConversationID `json:"id"`
	OwnerID      id.OwnerID        `json:"owner_id"`
	ReviewerID   id.ReviewerID     `json:"reviewer_id"`
	Subject      string            `json:"subject"`
	Status       Status            `json:"status"`
	Messages     []Message         `json:"messages"`
	RelatedSetID *id.SetID         `json:"related_set_id,omitempty"`
	Version      int64             `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ClosedAt     *time.Time        `json:"closed_at,omitempty"`
}

// New starts a conversation with its first message from sender.
func New(convID id.ConversationID, owner id.OwnerID, reviewer id.ReviewerID, subject string, sender id.Identity, body string, now time.Time) (*Conversation, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}
	if owner.IsNil() || reviewer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner and reviewer are required")
	}
	c := &Conversation{
		ID:         convID,
		OwnerID:    owner,
		ReviewerID: reviewer,
		Subject:    subject,
		Status:     StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := c.Append(sender, body, now); err != nil {
		return nil, err
	}
	return c, nil
}

// IsParticipant reports whether who is the owner or reviewer of c.
func (c *Conversation) IsParticipant(who id.Identity) bool {
	switch who.Role {
	case id.RoleOwner:
		return c.OwnerID == who.OwnerID()
	case id.RoleReviewer:
		return c.ReviewerID == who.ReviewerID()
	default:
		return false
	}
}

// Counterpart returns the other participant of who.
func (c *Conversation) Counterpart(who id.Identity) id.Identity {
	if who.Role == id.RoleOwner {
		return id.ReviewerIdentity(c.ReviewerID)
	}
	return id.OwnerIdentity(c.OwnerID)
}

// Append adds a message from sender. The timestamp is always the server's.
func (c *Conversation) Append(sender id.Identity, body string, now time.Time) (Message, error) {
	if c.Status == StatusClosed {
		return Message{}, dErrors.New(dErrors.CodeConversationClosed, "conversation is closed")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, dErrors.New(dErrors.CodeInvalidInput, "message body is required")
	}
	if len(body) > MaxBodyLength {
		return Message{}, dErrors.New(dErrors.CodeInvalidInput, "message body is too long")
	}
	msg := Message{
		Seq:        c.LastSeq() + 1,
		Sender:     sender.Role,
		SenderID:   sender.ID.String(),
		SenderName: sender.Name,
		Body:       body,
		SentAt:     now,
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = now
	return msg, nil
}

// Close marks c closed. It reports false when c was already closed.
func (c *Conversation) Close(now time.Time) bool {
	if c.Status == StatusClosed {
		return false
	}
	c.Status = StatusClosed
	c.ClosedAt = &now
	c.UpdatedAt = now
	return true
}

func (c *Conversation) LastSeq() int64 {
	if len(c.Messages) == 0 {
		return 0
	}
	return c.Messages[len(c.Messages)-1].Seq
}

// UnreadFor counts messages written by the other side after cursor.
func (c *Conversation) UnreadFor(role id.Role, cursor int64) int {
	n := 0
	for _, m := range c.Messages {
		if m.Seq > cursor && m.Sender != role {
			n++
		}
	}
	return n
}

func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	if c.RelatedSetID != nil {
		related := *c.RelatedSetID
		cp.RelatedSetID = &related
	}
	if c.ClosedAt != nil {
		closed := *c.ClosedAt
		cp.ClosedAt = &closed
	}
	return &cp
}

// Summary is a conversation as listed for one participant.
type Summary struct {
	*Conversation
	Unread int `json:"unread"`
}

// Stats is the reviewer dashboard tally.
type Stats struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
	Unread int `json:"unread"`
}
