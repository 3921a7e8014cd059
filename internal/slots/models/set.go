package models

import (
	"time"

	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
)

// SlotCount is the fixed number of upload slots in every set.
const SlotCount = 4

// ModerationState is the review state of an occupied slot.
type ModerationState string

const (
	StateEmpty    ModerationState = ""
	StatePending  ModerationState = "pending"
	StateApproved ModerationState = "approved"
	StateRejected ModerationState = "rejected"
)

// Action is a reviewer's per-slot verdict.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
)

func (a Action) IsValid() bool {
	return a == ActionApprove || a == ActionDecline
}

// State maps a verdict to the moderation state it produces.
func (a Action) State() ModerationState {
	if a == ActionApprove {
		return StateApproved
	}
	return StateRejected
}

// GeoTag is stored opaquely; the service never interprets it.
type GeoTag struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

type Feedback struct {
	Action       Action        `json:"action"`
	Message      string        `json:"message"`
	ReviewerID   id.ReviewerID `json:"reviewer_id"`
	ReviewerName string        `json:"reviewer_name,omitempty"`
	ReviewedAt   time.Time     `json:"reviewed_at"`
}

// UploadSlot is one position in a set. The zero value is an empty slot.
type UploadSlot struct {
	Index      int             `json:"index"`
	MediaRef   string          `json:"media_ref,omitempty"`
	UploadedAt *time.Time      `json:"uploaded_at,omitempty"`
	GeoTag     *GeoTag         `json:"geo_tag,omitempty"`
	State      ModerationState `json:"state,omitempty"`
	Feedback   *Feedback       `json:"feedback,omitempty"`
}

// IsEmpty reports whether the slot holds no media.
func (s UploadSlot) IsEmpty() bool {
	return s.MediaRef == "" || s.UploadedAt == nil
}

func (s *UploadSlot) clear() {
	*s = UploadSlot{Index: s.Index}
}

// SlotSet is the aggregate root for one record's four evidence slots.
//
// Invariants:
//   - Slots[i].Index == i
//   - an occupied slot always has UploadedAt and a moderation state
//   - slots fill in order; slot i is only occupied after slot i-1 was
//   - AwaitingReplenishment blocks every upload until cleared by Replenish
//   - Version increases by one on every committed mutation
type SlotSet struct {
	ID                    id.SetID              `json:"id"`
	RecordName            string                `json:"record_name"`
	OwnerID               id.OwnerID            `json:"owner_id"`
	ReviewerID            id.ReviewerID         `json:"reviewer_id"`
	Slots                 [SlotCount]UploadSlot `json:"slots"`
	AwaitingReplenishment bool                  `json:"awaiting_replenishment"`
	Version               int64                 `json:"version"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// NewSlotSet creates an empty set.
func NewSlotSet(setID id.SetID, recordName string, owner id.OwnerID, reviewer id.ReviewerID, now time.Time) (*SlotSet, error) {
	if setID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "set id cannot be nil")
	}
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner id cannot be nil")
	}
	if reviewer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reviewer id cannot be nil")
	}
	if recordName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record name cannot be empty")
	}
	if len(recordName) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record name must be 128 characters or less")
	}
	set := &SlotSet{
		ID:         setID,
		RecordName: recordName,
		OwnerID:    owner,
		ReviewerID: reviewer,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i := range set.Slots {
		set.Slots[i].Index = i
	}
	return set, nil
}

// OccupiedCount returns how many slots currently hold media.
func (s *SlotSet) OccupiedCount() int {
	n := 0
	for _, slot := range s.Slots {
		if !slot.IsEmpty() {
			n++
		}
	}
	return n
}

// IsComplete reports whether all four slots are occupied.
func (s *SlotSet) IsComplete() bool {
	return s.OccupiedCount() == SlotCount
}

// UploadWindow returns the earliest and latest upload instants of the
// occupied slots. ok is false when the set is empty.
func (s *SlotSet) UploadWindow() (first, last time.Time, ok bool) {
	for _, slot := range s.Slots {
		if slot.IsEmpty() {
			continue
		}
		at := *slot.UploadedAt
		if !ok || at.Before(first) {
			first = at
		}
		if !ok || at.After(last) {
			last = at
		}
		ok = true
	}
	return first, last, ok
}

// MediaRefs lists the media references of occupied slots in index order.
func (s *SlotSet) MediaRefs() []string {
	refs := make([]string, 0, SlotCount)
	for _, slot := range s.Slots {
		if !slot.IsEmpty() {
			refs = append(refs, slot.MediaRef)
		}
	}
	return refs
}

// Reset empties every slot. When awaitReplenishment is true the set stays
// locked until the owner's allocation is replenished.
func (s *SlotSet) Reset(awaitReplenishment bool, now time.Time) {
	for i := range s.Slots {
		s.Slots[i].clear()
	}
	if awaitReplenishment {
		s.AwaitingReplenishment = true
	}
	s.touch(now)
}

// Replenish lifts the post-reset upload lock.
func (s *SlotSet) Replenish(now time.Time) bool {
	if !s.AwaitingReplenishment {
		return false
	}
	s.AwaitingReplenishment = false
	s.touch(now)
	return true
}

// Moderate records a reviewer verdict on one pending slot.
func (s *SlotSet) Moderate(index int, fb Feedback) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	slot := &s.Slots[index]
	if slot.IsEmpty() {
		return dErrors.New(dErrors.CodeNothingToReview, "slot is empty")
	}
	if slot.State != StatePending {
		return dErrors.New(dErrors.CodeInvalidTransition, "slot has already been moderated")
	}
	if !fb.Action.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "action must be approve or decline")
	}
	slot.State = fb.Action.State()
	slot.Feedback = &fb
	s.touch(fb.ReviewedAt)
	return nil
}

func (s *SlotSet) touch(now time.Time) {
	s.UpdatedAt = now
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (s *SlotSet) Clone() *SlotSet {
	if s == nil {
		return nil
	}
	out := *s
	for i, slot := range s.Slots {
		if slot.UploadedAt != nil {
			at := *slot.UploadedAt
			out.Slots[i].UploadedAt = &at
		}
		if slot.GeoTag != nil {
			geo := *slot.GeoTag
			if geo.Accuracy != nil {
				acc := *geo.Accuracy
				geo.Accuracy = &acc
			}
			out.Slots[i].GeoTag = &geo
		}
		if slot.Feedback != nil {
			fb := *slot.Feedback
			out.Slots[i].Feedback = &fb
		}
	}
	return &out
}

func checkIndex(index int) error {
	if index < 0 || index >= SlotCount {
		return dErrors.New(dErrors.CodeInvalidInput, "slot index must be between 0 and 3")
	}
	return nil
}
