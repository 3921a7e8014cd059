// Package models holds the notification feed: per-recipient notifications,
// broadcasts that fan one message out to many owners, and short-lived
// stories.
package models

import (
	"strings"
	"time"

	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	strutil "hatchseed/pkg/platform/strings"
)

// StoryLifetime is how long a story stays visible.
const StoryLifetime = 24 * time.Hour

type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Target selects broadcast recipients.
type Target string

const (
	// TargetAll reaches every owner assigned to the broadcasting reviewer.
	TargetAll Target = "all"
	// TargetOwners reaches an explicit list of owners.
	TargetOwners Target = "owners"
)

type Notification struct {
	ID           id.NotificationID `json:"id"`
	Recipient    id.IdentityKey    `json:"recipient"`
	Sender       id.IdentityKey    `json:"sender,omitempty"`
	Type         Type              `json:"type"`
	Priority     Priority          `json:"priority"`
	Message      string            `json:"message"`
	MediaRefs    []string          `json:"media_refs,omitempty"`
	RelatedSetID *id.SetID         `json:"related_set_id,omitempty"`
	BroadcastID  *id.BroadcastID   `json:"broadcast_id,omitempty"`
	IsStory      bool              `json:"is_story"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Visible reports whether n should appear in a feed read at now. Stories
// disappear once expired, even before the cleanup worker removes them.
func (n *Notification) Visible(now time.Time) bool {
	return !n.IsStory || n.ExpiresAt == nil || now.Before(*n.ExpiresAt)
}

// Content is what a notification says, independent of who receives it.
type Content struct {
	Type         Type
	Priority     Priority
	Message      string
	MediaRefs    []string
	RelatedSetID *id.SetID
}

// Normalize fills defaults, cleans the media list and validates c.
func (c *Content) Normalize() error {
	c.Message = strings.TrimSpace(c.Message)
	c.MediaRefs = strutil.DedupeAndTrim(c.MediaRefs)
	if c.Type == "" {
		c.Type = TypeInfo
	}
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	if !c.Type.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown notification type")
	}
	if !c.Priority.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown notification priority")
	}
	if c.Message == "" && len(c.MediaRefs) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "message or media is required")
	}
	return nil
}

// BroadcastSummary is one broadcast as shown in the sender's history.
type BroadcastSummary struct {
	BroadcastID id.BroadcastID `json:"broadcast_id"`
	Type        Type           `json:"type"`
	Priority    Priority       `json:"priority"`
	Message     string         `json:"message"`
	IsStory     bool           `json:"is_story"`
	Recipients  int            `json:"recipients"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
}
