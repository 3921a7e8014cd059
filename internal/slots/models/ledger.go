package models

import (
	"math"
	"time"

	dErrors "hatchseed/pkg/domain-errors"
)

const (
	DefaultGraceWindow = 60 * time.Second
	DefaultUnlockDelay = 5 * time.Minute
)

// Timing holds the two durations every eligibility rule is derived from.
// Eligibility is always computed from stored timestamps and the caller's
// clock; nothing here schedules work.
type Timing struct {
	// GraceWindow is how long after upload an owner may still delete a slot,
	// and how long the reviewer view keeps the slot hidden.
	GraceWindow time.Duration
	// UnlockDelay runs after the grace window before the next slot opens.
	UnlockDelay time.Duration
}

// DefaultTiming returns the production durations.
func DefaultTiming() Timing {
	return Timing{GraceWindow: DefaultGraceWindow, UnlockDelay: DefaultUnlockDelay}
}

// Cooldown is the full gap between an upload and the next slot opening.
func (t Timing) Cooldown() time.Duration {
	return t.GraceWindow + t.UnlockDelay
}

// IneligibleReason explains why a slot cannot accept an upload.
type IneligibleReason string

const (
	ReasonNone                  IneligibleReason = ""
	ReasonOccupied              IneligibleReason = "occupied"
	ReasonAwaitingReplenishment IneligibleReason = "awaiting_replenishment"
	ReasonPreviousEmpty         IneligibleReason = "previous_empty"
	ReasonCoolingDown           IneligibleReason = "cooling_down"
	ReasonOutOfRange            IneligibleReason = "out_of_range"
)

// Eligibility is the outcome of CanUpload. RetryAfter is only set when the
// slot is cooling down.
type Eligibility struct {
	Allowed    bool
	Reason     IneligibleReason
	RetryAfter time.Duration
}

// CanUpload decides whether slot index of set may accept an upload at now.
func (t Timing) CanUpload(set *SlotSet, index int, now time.Time) Eligibility {
	if checkIndex(index) != nil {
		return Eligibility{Reason: ReasonOutOfRange}
	}
	if !set.Slots[index].IsEmpty() {
		return Eligibility{Reason: ReasonOccupied}
	}
	if set.AwaitingReplenishment {
		return Eligibility{Reason: ReasonAwaitingReplenishment}
	}
	if index == 0 {
		return Eligibility{Allowed: true}
	}
	prev := set.Slots[index-1]
	if prev.IsEmpty() {
		return Eligibility{Reason: ReasonPreviousEmpty}
	}
	opensAt := prev.UploadedAt.Add(t.Cooldown())
	if now.Before(opensAt) {
		return Eligibility{Reason: ReasonCoolingDown, RetryAfter: opensAt.Sub(now)}
	}
	return Eligibility{Allowed: true}
}

// CanDelete reports whether the owner may still erase slot at now. Rejected
// slots stay deletable so the owner can retake them; otherwise the window
// closes exactly GraceWindow after upload.
func (t Timing) CanDelete(slot UploadSlot, now time.Time) bool {
	if slot.IsEmpty() {
		return false
	}
	if slot.State == StateRejected {
		return true
	}
	return now.Sub(*slot.UploadedAt) < t.GraceWindow
}

// DeleteWindowRemaining is the time left to delete slot, or zero.
func (t Timing) DeleteWindowRemaining(slot UploadSlot, now time.Time) time.Duration {
	if slot.IsEmpty() || slot.State == StateRejected {
		return 0
	}
	remaining := t.GraceWindow - now.Sub(*slot.UploadedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// InGraceWindow reports whether slot was uploaded less than GraceWindow ago.
// Such slots are withheld from reviewers since the owner may still erase them.
func (t Timing) InGraceWindow(slot UploadSlot, now time.Time) bool {
	return !slot.IsEmpty() && now.Sub(*slot.UploadedAt) < t.GraceWindow
}

// UploadInput is the media an owner places into a slot.
type UploadInput struct {
	MediaRef string
	GeoTag   *GeoTag
}

// Upload places media into slot index. Occupancy is checked before the
// cooldown so two racing uploads to one slot see SlotOccupied, not SlotLocked.
func (t Timing) Upload(set *SlotSet, index int, in UploadInput, now time.Time) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	if in.MediaRef == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "media reference is required")
	}
	elig := t.CanUpload(set, index, now)
	if !elig.Allowed {
		return eligibilityError(elig)
	}
	at := now
	set.Slots[index] = UploadSlot{
		Index:      index,
		MediaRef:   in.MediaRef,
		UploadedAt: &at,
		GeoTag:     in.GeoTag,
		State:      StatePending,
	}
	set.touch(now)
	return nil
}

// Delete erases slot index and returns the removed slot so the caller can
// release its media.
func (t Timing) Delete(set *SlotSet, index int, now time.Time) (UploadSlot, error) {
	if err := checkIndex(index); err != nil {
		return UploadSlot{}, err
	}
	slot := set.Slots[index]
	if slot.IsEmpty() {
		return UploadSlot{}, dErrors.New(dErrors.CodeNotFound, "slot is empty")
	}
	if !t.CanDelete(slot, now) {
		return UploadSlot{}, dErrors.New(dErrors.CodeDeleteWindowExpired, "delete window has expired")
	}
	set.Slots[index].clear()
	set.touch(now)
	return slot, nil
}

func eligibilityError(e Eligibility) error {
	switch e.Reason {
	case ReasonOutOfRange:
		return dErrors.New(dErrors.CodeInvalidInput, "slot index must be between 0 and 3")
	case ReasonOccupied:
		return dErrors.New(dErrors.CodeSlotOccupied, "slot already holds an upload")
	case ReasonAwaitingReplenishment:
		return dErrors.New(dErrors.CodeSlotLocked, "set is awaiting replenishment").
			WithDetail("reason", string(e.Reason))
	case ReasonPreviousEmpty:
		return dErrors.New(dErrors.CodeSlotLocked, "previous slot is empty").
			WithDetail("reason", string(e.Reason))
	default:
		return dErrors.New(dErrors.CodeSlotLocked, "slot is still cooling down").
			WithDetail("reason", string(e.Reason)).
			WithDetail("retry_after_seconds", RetrySeconds(e.RetryAfter))
	}
}

// RetrySeconds rounds a wait up to whole seconds for clients.
func RetrySeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}

// SlotView is the per-slot projection returned on every read so clients can
// render countdowns without keeping their own timers.
type SlotView struct {
	UploadSlot
	CanUpload             bool             `json:"can_upload"`
	LockReason            IneligibleReason `json:"lock_reason,omitempty"`
	RetryAfterSeconds     int64            `json:"retry_after_seconds,omitempty"`
	CanDelete             bool             `json:"can_delete"`
	DeleteWindowRemaining int64            `json:"delete_window_remaining_seconds,omitempty"`
}

// SetView is a set with every slot projected at one instant.
type SetView struct {
	*SlotSet
	Slots [SlotCount]SlotView `json:"slots"`
	AsOf  time.Time           `json:"as_of"`
}

// View projects set at now.
func (t Timing) View(set *SlotSet, now time.Time) SetView {
	view := SetView{SlotSet: set, AsOf: now}
	for i, slot := range set.Slots {
		elig := t.CanUpload(set, i, now)
		view.Slots[i] = SlotView{
			UploadSlot:            slot,
			CanUpload:             elig.Allowed,
			LockReason:            elig.Reason,
			RetryAfterSeconds:     RetrySeconds(elig.RetryAfter),
			CanDelete:             t.CanDelete(slot, now),
			DeleteWindowRemaining: RetrySeconds(t.DeleteWindowRemaining(slot, now)),
		}
	}
	return view
}

// ReviewerView projects set for a reviewer: slots still inside the owner's
// grace window are presented as empty.
func (t Timing) ReviewerView(set *SlotSet, now time.Time) SetView {
	masked := set.Clone()
	for i, slot := range masked.Slots {
		if t.InGraceWindow(slot, now) {
			masked.Slots[i].clear()
		}
	}
	view := SetView{SlotSet: masked, AsOf: now}
	for i, slot := range masked.Slots {
		view.Slots[i] = SlotView{UploadSlot: slot}
	}
	return view
}
