package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events that change what an owner has been
	// credited for. They are written inside the business transaction and the
	// operation fails when they cannot be persisted.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected credentials and access violations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity; it may be sampled or dropped.
	CategoryOperations EventCategory = "operations"
)

// Event is the stored form of every audit record.
type Event struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	// Subject is the aggregate the action concerns (set, conversation, broadcast).
	Subject string
	Action  string
	// OwnerID is the record owner affected, when there is one.
	OwnerID string
	// ActorID is who performed the action: "<role>:<uuid>".
	ActorID   string
	Decision  string
	Reason    string
	IP        string
	RequestID string
}

// Store persists audit events. Postgres implementations join the caller's
// transaction when one is carried by ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	// Compliance
	EventSetApproved   AuditEvent = "set_approved"
	EventSetReset      AuditEvent = "set_reset"
	EventSlotModerated AuditEvent = "slot_moderated"
	EventAllocation    AuditEvent = "allocation_replenished"

	// Security
	EventAuthFailed   AuditEvent = "auth_failed"
	EventAccessDenied AuditEvent = "access_denied"

	// Operations
	EventSetOpened          AuditEvent = "set_opened"
	EventSlotUploaded       AuditEvent = "slot_uploaded"
	EventSlotDeleted        AuditEvent = "slot_deleted"
	EventConversationClosed AuditEvent = "conversation_closed"
	EventBroadcastPosted    AuditEvent = "broadcast_posted"
	EventBroadcastRetracted AuditEvent = "broadcast_retracted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSetApproved:   CategoryCompliance,
	EventSetReset:      CategoryCompliance,
	EventSlotModerated: CategoryCompliance,
	EventAllocation:    CategoryCompliance,

	EventAuthFailed:   CategorySecurity,
	EventAccessDenied: CategorySecurity,

	EventSetOpened:          CategoryOperations,
	EventSlotUploaded:       CategoryOperations,
	EventSlotDeleted:        CategoryOperations,
	EventConversationClosed: CategoryOperations,
	EventBroadcastPosted:    CategoryOperations,
	EventBroadcastRetracted: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent is emitted with fail-closed semantics.
type ComplianceEvent struct {
	Timestamp time.Time
	Subject   string // required
	Action    AuditEvent
	OwnerID   string
	ActorID   string
	Decision  string
	RequestID string
}

func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    string(e.Action),
		OwnerID:   e.OwnerID,
		ActorID:   e.ActorID,
		Decision:  e.Decision,
		RequestID: e.RequestID,
	}
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SecurityEvent is buffered and flushed in the background.
type SecurityEvent struct {
	Timestamp time.Time
	Subject   string
	Action    AuditEvent
	Reason    string
	IP        string
	RequestID string
	Severity  Severity
}

func (e SecurityEvent) ToEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    string(e.Action),
		Reason:    e.Reason,
		IP:        e.IP,
		RequestID: e.RequestID,
		Decision:  string(e.Severity),
	}
}

// OpsEvent is fire-and-forget and may be sampled.
type OpsEvent struct {
	Timestamp time.Time
	Subject   string
	Action    AuditEvent
	ActorID   string
	RequestID string
}

func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    string(e.Action),
		ActorID:   e.ActorID,
		RequestID: e.RequestID,
	}
}
