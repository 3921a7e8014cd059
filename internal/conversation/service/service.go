// Package service runs conversation threads between an owner and a
// reviewer. Appends and closes are serialised per conversation; read cursors
// only move forward and need no aggregate lock.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hatchseed/internal/conversation/metrics"
	"hatchseed/internal/conversation/models"
	"hatchseed/internal/events"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	audit "hatchseed/pkg/platform/audit"
	"hatchseed/pkg/platform/sentinel"
	txcontext "hatchseed/pkg/platform/tx"
	"hatchseed/pkg/requestcontext"
)

// DefaultRetention is how long a conversation may sit untouched before the
// cleanup worker removes it.
const DefaultRetention = 10 * 24 * time.Hour

// Store persists conversations and per-identity read cursors. Update checks
// Version and advances it on success.
type Store interface {
	Create(ctx context.Context, conv *models.Conversation) error
	FindByID(ctx context.Context, convID id.ConversationID) (*models.Conversation, error)
	AppendMessage(ctx context.Context, convID id.ConversationID, msg models.Message) error
	Update(ctx context.Context, conv *models.Conversation) error
	ListByOwner(ctx context.Context, owner id.OwnerID) ([]*models.Conversation, error)
	ListByReviewer(ctx context.Context, reviewer id.ReviewerID) ([]*models.Conversation, error)
	Cursors(ctx context.Context, key id.IdentityKey) (map[id.ConversationID]int64, error)
	// SetCursor never moves a cursor backwards.
	SetCursor(ctx context.Context, key id.IdentityKey, convID id.ConversationID, seq int64) error
	PurgeInactive(ctx context.Context, cutoff time.Time) (int, error)
	DeleteRelated(ctx context.Context, setID id.SetID) (int, error)
}

type OpsTracker interface {
	Track(event audit.OpsEvent)
}

type Service struct {
	store     Store
	tx        ConversationTx
	publisher events.Publisher
	ops       OpsTracker
	metrics   *metrics.Metrics
	retention time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
}

type Option func(*Service)

func WithTx(tx ConversationTx) Option {
	return func(s *Service) {
		s.tx = tx
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: events.NopPublisher{},
		retention: DefaultRetention,
		logger:    slog.Default(),
		tracer:    otel.Tracer("hatchseed/conversation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(store)
	}
	return s
}

type StartRequest struct {
	OwnerID      id.OwnerID
	ReviewerID   id.ReviewerID
	Subject      string
	Body         string
	RelatedSetID *id.SetID
}

// Start creates a conversation with its first message from sender, who must
// be one of the two participants.
func (s *Service) Start(ctx context.Context, sender id.Identity, req StartRequest) (conv *models.Conversation, err error) {
	convID := id.ConversationID(uuid.New())
	ctx, span := s.startSpan(ctx, "Start", convID)
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	conv, err = models.New(convID, req.OwnerID, req.ReviewerID, req.Subject, sender, req.Body, now)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(sender) {
		return nil, dErrors.New(dErrors.CodeForbidden, "sender is not a participant")
	}
	conv.RelatedSetID = req.RelatedSetID
	if err := s.store.Create(ctx, conv); err != nil {
		return nil, translateStoreErr(err, "failed to create conversation")
	}
	// The starter has read their own opening message.
	if err := s.store.SetCursor(ctx, sender.Key(), conv.ID, conv.LastSeq()); err != nil {
		s.logger.WarnContext(ctx, "failed to set read cursor", "conversation_id", conv.ID.String(), "error", err)
	}

	s.publish(conv.Counterpart(sender).Key(), messageEvent(conv, conv.Messages[0]))
	s.metrics.IncrementStarted()
	s.metrics.IncrementMessages(string(sender.Role))
	s.logger.InfoContext(ctx, "conversation started",
		"conversation_id", conv.ID.String(),
		"sender", sender.Key(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return conv, nil
}

// AppendMessage adds a message and returns the conversation as stored, so
// the client replaces its optimistic copy with the authoritative one.
func (s *Service) AppendMessage(ctx context.Context, convID id.ConversationID, sender id.Identity, body string) (conv *models.Conversation, err error) {
	ctx, span := s.startSpan(ctx, "AppendMessage", convID)
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, convID, func(ctx context.Context, store Store) error {
		c, err := load(ctx, store, convID)
		if err != nil {
			return err
		}
		if !c.IsParticipant(sender) {
			return dErrors.New(dErrors.CodeForbidden, "sender is not a participant")
		}
		msg, err := c.Append(sender, body, now)
		if err != nil {
			return err
		}
		if err := store.AppendMessage(ctx, c.ID, msg); err != nil {
			return translateStoreErr(err, "failed to append message")
		}
		if err := store.Update(ctx, c); err != nil {
			return translateStoreErr(err, "failed to update conversation")
		}
		if err := store.SetCursor(ctx, sender.Key(), c.ID, msg.Seq); err != nil {
			return translateStoreErr(err, "failed to advance read cursor")
		}
		conv = c
		counterpart := c.Counterpart(sender).Key()
		evt := messageEvent(c, msg)
		txcontext.OnCommit(ctx, func() { s.publish(counterpart, evt) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementMessages(string(sender.Role))
	return conv, nil
}

// Close is idempotent; only the call that actually closes the conversation
// publishes ConversationClosed.
func (s *Service) Close(ctx context.Context, convID id.ConversationID, actor id.Identity) (conv *models.Conversation, err error) {
	ctx, span := s.startSpan(ctx, "Close", convID)
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	closed := false
	err = s.tx.RunInTx(ctx, convID, func(ctx context.Context, store Store) error {
		c, err := load(ctx, store, convID)
		if err != nil {
			return err
		}
		if !c.IsParticipant(actor) {
			return dErrors.New(dErrors.CodeNotFound, "conversation not found")
		}
		conv = c
		if !c.Close(now) {
			return nil
		}
		if err := store.Update(ctx, c); err != nil {
			return translateStoreErr(err, "failed to close conversation")
		}
		closed = true
		evt := events.Event{
			Type:       events.TypeConversationClosed,
			Aggregate:  c.ID.String(),
			Payload:    events.ConversationClosedPayload{ConversationID: c.ID, ClosedBy: actor.Role},
			OccurredAt: now,
		}
		ownerKey := id.OwnerIdentity(c.OwnerID).Key()
		reviewerKey := id.ReviewerIdentity(c.ReviewerID).Key()
		txcontext.OnCommit(ctx, func() {
			s.publish(ownerKey, evt)
			s.publish(reviewerKey, evt)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if closed {
		s.metrics.IncrementClosed()
		s.track(ctx, audit.EventConversationClosed, convID.String(), actor, now)
	}
	return conv, nil
}

// Get returns the conversation to one of its participants.
func (s *Service) Get(ctx context.Context, convID id.ConversationID, who id.Identity) (*models.Conversation, error) {
	conv, err := load(ctx, s.store, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(who) {
		return nil, dErrors.New(dErrors.CodeNotFound, "conversation not found")
	}
	return conv, nil
}

// List returns the identity's conversations, most recently active first,
// each with its unread count. An empty status lists every conversation.
func (s *Service) List(ctx context.Context, who id.Identity, status models.Status) ([]models.Summary, error) {
	convs, err := s.conversationsOf(ctx, who)
	if err != nil {
		return nil, err
	}
	cursors, err := s.store.Cursors(ctx, who.Key())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load read cursors")
	}
	out := make([]models.Summary, 0, len(convs))
	for _, c := range convs {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, models.Summary{Conversation: c, Unread: c.UnreadFor(who.Role, cursors[c.ID])})
	}
	return out, nil
}

// MarkRead advances who's cursor to the last message of the conversation.
func (s *Service) MarkRead(ctx context.Context, convID id.ConversationID, who id.Identity) error {
	conv, err := s.Get(ctx, convID, who)
	if err != nil {
		return err
	}
	if err := s.store.SetCursor(ctx, who.Key(), conv.ID, conv.LastSeq()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance read cursor")
	}
	return nil
}

// MarkAllRead advances every cursor of who and returns how many
// conversations had unread messages.
func (s *Service) MarkAllRead(ctx context.Context, who id.Identity) (int, error) {
	summaries, err := s.List(ctx, who, "")
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, sum := range summaries {
		if sum.Unread == 0 {
			continue
		}
		if err := s.store.SetCursor(ctx, who.Key(), sum.ID, sum.LastSeq()); err != nil {
			return marked, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance read cursor")
		}
		marked++
	}
	return marked, nil
}

// UnreadCount totals counterpart messages past who's cursors.
func (s *Service) UnreadCount(ctx context.Context, who id.Identity) (int, error) {
	summaries, err := s.List(ctx, who, "")
	if err != nil {
		return 0, err
	}
	total := 0
	for _, sum := range summaries {
		total += sum.Unread
	}
	return total, nil
}

// Stats tallies a reviewer's conversations.
func (s *Service) Stats(ctx context.Context, reviewer id.ReviewerID) (models.Stats, error) {
	summaries, err := s.List(ctx, id.ReviewerIdentity(reviewer), "")
	if err != nil {
		return models.Stats{}, err
	}
	var st models.Stats
	for _, sum := range summaries {
		st.Total++
		if sum.Status == models.StatusOpen {
			st.Open++
		} else {
			st.Closed++
		}
		st.Unread += sum.Unread
	}
	return st, nil
}

// PurgeInactive removes conversations untouched for the retention period.
func (s *Service) PurgeInactive(ctx context.Context, now time.Time) (int, error) {
	n, err := s.store.PurgeInactive(ctx, now.Add(-s.retention))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge conversations")
	}
	if n > 0 {
		s.metrics.AddPurged(n)
		s.logger.InfoContext(ctx, "purged inactive conversations", "count", n)
	}
	return n, nil
}

// PurgeRelated drops help threads about a set once it has been approved or
// reset.
func (s *Service) PurgeRelated(ctx context.Context, setID id.SetID) (int, error) {
	n, err := s.store.DeleteRelated(ctx, setID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge related conversations")
	}
	if n > 0 {
		s.metrics.AddPurged(n)
		s.logger.InfoContext(ctx, "purged related conversations", "set_id", setID.String(), "count", n)
	}
	return n, nil
}

func (s *Service) conversationsOf(ctx context.Context, who id.Identity) ([]*models.Conversation, error) {
	var (
		convs []*models.Conversation
		err   error
	)
	switch who.Role {
	case id.RoleOwner:
		convs, err = s.store.ListByOwner(ctx, who.OwnerID())
	case id.RoleReviewer:
		convs, err = s.store.ListByReviewer(ctx, who.ReviewerID())
	default:
		return nil, dErrors.New(dErrors.CodeForbidden, "unknown role")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list conversations")
	}
	return convs, nil
}

func messageEvent(c *models.Conversation, msg models.Message) events.Event {
	return events.Event{
		Type:      events.TypeMessageAdded,
		Aggregate: c.ID.String(),
		Payload: events.MessagePayload{
			ConversationID: c.ID,
			Seq:            msg.Seq,
			Sender:         msg.Sender,
			Body:           msg.Body,
			SentAt:         msg.SentAt,
		},
		OccurredAt: msg.SentAt,
	}
}

func (s *Service) publish(key id.IdentityKey, evt events.Event) {
	s.publisher.Publish(key, evt)
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

func (s *Service) startSpan(ctx context.Context, op string, convID id.ConversationID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "conversation."+op, trace.WithAttributes(
		attribute.String("conversation_id", convID.String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func load(ctx context.Context, store Store, convID id.ConversationID) (*models.Conversation, error) {
	conv, err := store.FindByID(ctx, convID)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load conversation")
	}
	return conv, nil
}

func translateStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "conversation not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "conversation was modified concurrently")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
