// Package service runs the notification feed. Each identity has one global
// read cursor; marking the feed read moves the cursor and never rewrites
// notifications.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hatchseed/internal/events"
	"hatchseed/internal/notification/models"
	slotmodels "hatchseed/internal/slots/models"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	audit "hatchseed/pkg/platform/audit"
	txcontext "hatchseed/pkg/platform/tx"
	"hatchseed/pkg/requestcontext"
)

const (
	DefaultRetention = 10 * 24 * time.Hour
	DefaultPageSize  = 50
	MaxPageSize      = 200
)

type Store interface {
	Insert(ctx context.Context, notifications ...*models.Notification) error
	// ListForRecipient returns newest first, at most limit entries.
	ListForRecipient(ctx context.Context, recipient id.IdentityKey, limit int) ([]*models.Notification, error)
	// CountSince counts notifications created after since that are still
	// visible at now.
	CountSince(ctx context.Context, recipient id.IdentityKey, since, now time.Time) (int, error)
	// DeleteBroadcast removes a sender's broadcast and returns who had received it.
	DeleteBroadcast(ctx context.Context, broadcastID id.BroadcastID, sender id.IdentityKey) ([]id.IdentityKey, error)
	ListBroadcasts(ctx context.Context, sender id.IdentityKey) ([]models.BroadcastSummary, error)
	Cursor(ctx context.Context, recipient id.IdentityKey) (time.Time, error)
	// SetCursor never moves a cursor backwards.
	SetCursor(ctx context.Context, recipient id.IdentityKey, readThrough time.Time) error
	// Purge deletes plain notifications created before cutoff and stories
	// that expired before now.
	Purge(ctx context.Context, cutoff, now time.Time) (int, error)
	// DeleteRelated removes every notification that refers to setID.
	DeleteRelated(ctx context.Context, setID id.SetID) (int, error)
}

// OwnerDirectory resolves the owners a reviewer may broadcast to.
type OwnerDirectory interface {
	OwnersForReviewer(ctx context.Context, reviewer id.ReviewerID) ([]id.OwnerID, error)
}

// Transactor runs fn so that every Insert inside it commits together.
type Transactor func(ctx context.Context, fn func(ctx context.Context) error) error

type OpsTracker interface {
	Track(event audit.OpsEvent)
}

type Service struct {
	store     Store
	owners    OwnerDirectory
	runInTx   Transactor
	publisher events.Publisher
	ops       OpsTracker
	retention time.Duration
	storyTTL  time.Duration
	logger    *slog.Logger
}

type Option func(*Service)

func WithTransactor(t Transactor) Option {
	return func(s *Service) {
		s.runInTx = t
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) {
		s.ops = t
	}
}

func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithStoryLifetime overrides how long stories stay visible.
func WithStoryLifetime(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storyTTL = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, owners OwnerDirectory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		owners:    owners,
		publisher: events.NopPublisher{},
		retention: DefaultRetention,
		storyTTL:  models.StoryLifetime,
		logger:    slog.Default(),
		runInTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify posts one notification to recipient.
func (s *Service) Notify(ctx context.Context, recipient id.Identity, content models.Content) (*models.Notification, error) {
	if err := content.Normalize(); err != nil {
		return nil, err
	}
	n := s.newNotification(recipient.Key(), "", content, requestcontext.Now(ctx))
	if err := s.store.Insert(ctx, n); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store notification")
	}
	return n, nil
}

// SetReadyForReview tells a reviewer that all four slots of a set are filled.
func (s *Service) SetReadyForReview(ctx context.Context, set *slotmodels.SlotSet) error {
	setID := set.ID
	_, err := s.Notify(ctx, id.ReviewerIdentity(set.ReviewerID), models.Content{
		Type:         models.TypeInfo,
		Priority:     models.PriorityHigh,
		Message:      "All four uploads of " + set.RecordName + " are ready for review",
		RelatedSetID: &setID,
	})
	return err
}

// SetApproved tells the owner their set was approved and the transaction
// recorded.
func (s *Service) SetApproved(ctx context.Context, set *slotmodels.SlotSet, txnID id.TransactionID) error {
	setID := set.ID
	n, err := s.Notify(ctx, id.OwnerIdentity(set.OwnerID), models.Content{
		Type:         models.TypeSuccess,
		Priority:     models.PriorityHigh,
		Message:      "Your set " + set.RecordName + " has been approved. Transaction completed successfully.",
		RelatedSetID: &setID,
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "approval notification posted",
		"notification_id", n.ID.String(),
		"transaction_id", txnID.String(),
	)
	return nil
}

// PurgeRelated removes notifications about a set that has been approved or
// reset.
func (s *Service) PurgeRelated(ctx context.Context, setID id.SetID) (int, error) {
	n, err := s.store.DeleteRelated(ctx, setID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge related notifications")
	}
	return n, nil
}

type BroadcastInput struct {
	Target   models.Target
	OwnerIDs []id.OwnerID
	models.Content
}

type BroadcastResult struct {
	BroadcastID id.BroadcastID `json:"broadcast_id"`
	Recipients  int            `json:"recipients"`
	IsStory     bool           `json:"is_story"`
}

// Broadcast fans one message out to owners. A broadcast carrying media is a
// story and expires after a day.
func (s *Service) Broadcast(ctx context.Context, reviewer id.Identity, in BroadcastInput) (BroadcastResult, error) {
	if reviewer.Role != id.RoleReviewer {
		return BroadcastResult{}, dErrors.New(dErrors.CodeForbidden, "only reviewers broadcast")
	}
	if err := in.Content.Normalize(); err != nil {
		return BroadcastResult{}, err
	}
	recipients, err := s.resolveTarget(ctx, reviewer.ReviewerID(), in)
	if err != nil {
		return BroadcastResult{}, err
	}

	now := requestcontext.Now(ctx)
	broadcastID := id.BroadcastID(uuid.New())
	batch := make([]*models.Notification, 0, len(recipients))
	for _, owner := range recipients {
		n := s.newNotification(id.OwnerIdentity(owner).Key(), reviewer.Key(), in.Content, now)
		n.BroadcastID = &broadcastID
		batch = append(batch, n)
	}

	payload := events.BroadcastPayload{
		BroadcastID: broadcastID,
		Message:     in.Message,
		Priority:    string(in.Priority),
	}
	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Insert(ctx, batch...); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store broadcast")
		}
		txcontext.OnCommit(ctx, func() {
			for _, n := range batch {
				s.publisher.Publish(n.Recipient, events.Event{
					Type:       events.TypeBroadcastPosted,
					Aggregate:  broadcastID.String(),
					Payload:    payload,
					OccurredAt: now,
				})
			}
		})
		return nil
	})
	if err != nil {
		return BroadcastResult{}, err
	}

	isStory := len(in.MediaRefs) > 0
	s.track(ctx, audit.EventBroadcastPosted, broadcastID.String(), reviewer, now)
	s.logger.InfoContext(ctx, "broadcast posted",
		"broadcast_id", broadcastID.String(),
		"recipients", len(batch),
		"story", isStory,
		"request_id", requestcontext.RequestID(ctx),
	)
	return BroadcastResult{BroadcastID: broadcastID, Recipients: len(batch), IsStory: isStory}, nil
}

func (s *Service) resolveTarget(ctx context.Context, reviewer id.ReviewerID, in BroadcastInput) ([]id.OwnerID, error) {
	switch in.Target {
	case models.TargetAll, "":
		owners, err := s.owners.OwnersForReviewer(ctx, reviewer)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve broadcast recipients")
		}
		if len(owners) == 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "reviewer has no owners to broadcast to")
		}
		return owners, nil
	case models.TargetOwners:
		if len(in.OwnerIDs) == 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "owner ids are required for this target")
		}
		seen := make(map[id.OwnerID]bool, len(in.OwnerIDs))
		owners := make([]id.OwnerID, 0, len(in.OwnerIDs))
		for _, o := range in.OwnerIDs {
			if o.IsNil() {
				return nil, dErrors.New(dErrors.CodeInvalidInput, "owner id must not be nil")
			}
			if !seen[o] {
				seen[o] = true
				owners = append(owners, o)
			}
		}
		return owners, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown broadcast target")
	}
}

// Retract deletes every notification of a broadcast the reviewer sent.
func (s *Service) Retract(ctx context.Context, reviewer id.Identity, broadcastID id.BroadcastID) (int, error) {
	now := requestcontext.Now(ctx)
	var recipients []id.IdentityKey
	err := s.runInTx(ctx, func(ctx context.Context) error {
		var err error
		recipients, err = s.store.DeleteBroadcast(ctx, broadcastID, reviewer.Key())
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to retract broadcast")
		}
		if len(recipients) == 0 {
			return dErrors.New(dErrors.CodeNotFound, "broadcast not found")
		}
		evt := events.Event{
			Type:       events.TypeBroadcastRetracted,
			Aggregate:  broadcastID.String(),
			Payload:    events.BroadcastPayload{BroadcastID: broadcastID},
			OccurredAt: now,
		}
		txcontext.OnCommit(ctx, func() {
			for _, key := range recipients {
				s.publisher.Publish(key, evt)
			}
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.track(ctx, audit.EventBroadcastRetracted, broadcastID.String(), reviewer, now)
	return len(recipients), nil
}

// List returns the visible feed of who, newest first.
func (s *Service) List(ctx context.Context, who id.Identity, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	all, err := s.store.ListForRecipient(ctx, who.Key(), limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	now := requestcontext.Now(ctx)
	out := make([]*models.Notification, 0, len(all))
	for _, n := range all {
		if n.Visible(now) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Stories returns the unexpired stories of who.
func (s *Service) Stories(ctx context.Context, who id.Identity) ([]*models.Notification, error) {
	feed, err := s.List(ctx, who, MaxPageSize)
	if err != nil {
		return nil, err
	}
	stories := make([]*models.Notification, 0)
	for _, n := range feed {
		if n.IsStory {
			stories = append(stories, n)
		}
	}
	return stories, nil
}

// UnreadCount counts notifications created after who's cursor.
func (s *Service) UnreadCount(ctx context.Context, who id.Identity) (int, error) {
	cursor, err := s.store.Cursor(ctx, who.Key())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load feed cursor")
	}
	n, err := s.store.CountSince(ctx, who.Key(), cursor, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count notifications")
	}
	return n, nil
}

// MarkAllRead moves who's cursor to now.
func (s *Service) MarkAllRead(ctx context.Context, who id.Identity) error {
	if err := s.store.SetCursor(ctx, who.Key(), requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance feed cursor")
	}
	return nil
}

// History lists the reviewer's broadcasts, newest first.
func (s *Service) History(ctx context.Context, reviewer id.Identity) ([]models.BroadcastSummary, error) {
	out, err := s.store.ListBroadcasts(ctx, reviewer.Key())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list broadcasts")
	}
	return out, nil
}

// PurgeExpired removes stories past their expiry and plain notifications
// older than the retention period.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := s.store.Purge(ctx, now.Add(-s.retention), now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge notifications")
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged notifications", "count", n)
	}
	return n, nil
}

func (s *Service) newNotification(recipient, sender id.IdentityKey, c models.Content, now time.Time) *models.Notification {
	n := &models.Notification{
		ID:           id.NotificationID(uuid.New()),
		Recipient:    recipient,
		Sender:       sender,
		Type:         c.Type,
		Priority:     c.Priority,
		Message:      c.Message,
		MediaRefs:    c.MediaRefs,
		RelatedSetID: c.RelatedSetID,
		CreatedAt:    now,
	}
	if len(c.MediaRefs) > 0 {
		expires := now.Add(s.storyTTL)
		n.IsStory = true
		n.ExpiresAt = &expires
	}
	return n
}

func (s *Service) track(ctx context.Context, action audit.AuditEvent, subject string, actor id.Identity, now time.Time) {
	if s.ops == nil {
		return
	}
	s.ops.Track(audit.OpsEvent{
		Timestamp: now,
		Subject:   subject,
		Action:    action,
		ActorID:   string(actor.Key()),
		RequestID: requestcontext.RequestID(ctx),
	})
}
