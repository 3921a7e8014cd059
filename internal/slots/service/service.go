// Package service runs the evidence slot workflow: owners upload into four
// ordered slots, reviewers moderate each slot and finally approve the set
// (recording a transaction) or delete it (revoking the owner's allocation).
//
// Every mutation runs inside SetTx.RunInTx for its set, and push events are
// published from commit hooks while the set lock is still held so each
// identity observes one set's events in commit order.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hatchseed/internal/events"
	"hatchseed/internal/slots/metrics"
	"hatchseed/internal/slots/models"
	"hatchseed/internal/slots/ports"
	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
	audit "hatchseed/pkg/platform/audit"
	"hatchseed/pkg/platform/sentinel"
	"hatchseed/pkg/requestcontext"
)

// Store persists slot sets. Save performs an optimistic check on Version
// and advances it on success.
type Store interface {
	Create(ctx context.Context, set *models.SlotSet) error
	FindByID(ctx context.Context, setID id.SetID) (*models.SlotSet, error)
	Save(ctx context.Context, set *models.SlotSet) error
	ListByOwner(ctx context.Context, owner id.OwnerID) ([]*models.SlotSet, error)
	ListByReviewer(ctx context.Context, reviewer id.ReviewerID) ([]*models.SlotSet, error)
	OwnersForReviewer(ctx context.Context, reviewer id.ReviewerID) ([]id.OwnerID, error)
}

// ComplianceAuditor persists events that must commit with the mutation.
type ComplianceAuditor interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// OpsTracker records routine activity without blocking.
type OpsTracker interface {
	Track(event audit.OpsEvent)
}

type Service struct {
	store        Store
	tx           SetTx
	timing       models.Timing
	ledger       ports.TransactionLedger
	entitlements ports.Entitlements
	media        ports.MediaStore
	notifier     ports.Notifier
	purgers      []ports.RelatedPurger
	publisher    events.Publisher
	compliance   ComplianceAuditor
	ops          OpsTracker
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
}

type Option func(*Service)

func WithTx(tx SetTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithTiming(t models.Timing) Option {
	return func(s *Service) {
		s.timing = t
	}
}

func WithMediaStore(m ports.MediaStore) Option {
	return func(s *Service) {
		s.media = m
	}
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithRelatedPurgers(p ...ports.RelatedPurger) Option {
	return func(s *Service) {
		s.purgers = append(s.purgers, p...)
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

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New builds the service. The ledger, entitlement and compliance
// collaborators are required: approval and deletion cannot proceed without
// them.
func New(
	store Store,
	ledger ports.TransactionLedger,
	entitlements ports.Entitlements,
	compliance ComplianceAuditor,
	opts ...Option,
) *Service {
	s := &Service{
		store:        store,
		timing:       models.DefaultTiming(),
		ledger:       ledger,
		entitlements: entitlements,
		compliance:   compliance,
		publisher:    events.NopPublisher{},
		logger:       slog.Default(),
		tracer:       otel.Tracer("hatchseed/slots"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(store)
	}
	return s
}

// Timing exposes the rules the service applies, for read projections.
func (s *Service) Timing() models.Timing {
	return s.timing
}

func (s *Service) startSpan(ctx context.Context, op string, setID id.SetID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "slots."+op, trace.WithAttributes(
		attribute.String("set_id", setID.String()),
	))
}

// finish records the outcome of one operation on its span and metrics.
func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	s.metrics.ObserveOperation(op, time.Since(start).Seconds())
	if err != nil {
		s.metrics.IncrementRejected(op, string(dErrors.CodeOf(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

// load reads a set inside a transaction and translates store sentinels.
func load(ctx context.Context, store Store, setID id.SetID) (*models.SlotSet, error) {
	set, err := store.FindByID(ctx, setID)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load set")
	}
	return set, nil
}

func save(ctx context.Context, store Store, set *models.SlotSet) error {
	if err := store.Save(ctx, set); err != nil {
		return translateStoreErr(err, "failed to save set")
	}
	return nil
}

func translateStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "set not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "set was modified concurrently")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
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

// releaseMedia deletes backing objects after the set no longer references
// them. Failures are logged; the objects become orphans for the storage
// system's own sweep.
func (s *Service) releaseMedia(ctx context.Context, refs []string) {
	if s.media == nil {
		return
	}
	for _, ref := range refs {
		if err := s.media.Delete(ctx, ref); err != nil {
			s.logger.WarnContext(ctx, "failed to delete media",
				"media_ref", ref,
				"error", err,
			)
		}
	}
}
