package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"hatchseed/internal/notification/models"
	id "hatchseed/pkg/domain"
	txcontext "hatchseed/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Execer {
	return txcontext.ExecerFrom(ctx, s.db)
}

const selectNotification = `
	SELECT id, recipient, sender, type, priority, message, media_refs, related_set_id,
	       broadcast_id, is_story, expires_at, created_at
	FROM notifications
`

// visibleAt filters out expired stories; $2 is the read instant.
const visibleAt = ` AND (NOT is_story OR expires_at IS NULL OR expires_at > $2)`

func (s *PostgresStore) Insert(ctx context.Context, notifications ...*models.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient, sender, type, priority, message, media_refs,
			related_set_id, broadcast_id, is_story, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, n := range notifications {
		var related, broadcast uuid.NullUUID
		if n.RelatedSetID != nil {
			related = uuid.NullUUID{UUID: uuid.UUID(*n.RelatedSetID), Valid: true}
		}
		if n.BroadcastID != nil {
			broadcast = uuid.NullUUID{UUID: uuid.UUID(*n.BroadcastID), Valid: true}
		}
		_, err := s.execer(ctx).ExecContext(ctx, query,
			uuid.UUID(n.ID),
			string(n.Recipient),
			string(n.Sender),
			string(n.Type),
			string(n.Priority),
			n.Message,
			pq.Array(n.MediaRefs),
			related,
			broadcast,
			n.IsStory,
			n.ExpiresAt,
			n.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListForRecipient(ctx context.Context, recipient id.IdentityKey, limit int) ([]*models.Notification, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		selectNotification+` WHERE recipient = $1 ORDER BY created_at DESC, id LIMIT $2`,
		string(recipient), limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountSince(ctx context.Context, recipient id.IdentityKey, since, now time.Time) (int, error) {
	var n int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM notifications WHERE recipient = $1`+visibleAt+` AND created_at > $3`,
		string(recipient), now, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) DeleteBroadcast(ctx context.Context, broadcastID id.BroadcastID, sender id.IdentityKey) ([]id.IdentityKey, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`DELETE FROM notifications WHERE broadcast_id = $1 AND sender = $2 RETURNING recipient`,
		uuid.UUID(broadcastID), string(sender))
	if err != nil {
		return nil, fmt.Errorf("delete broadcast: %w", err)
	}
	defer rows.Close()

	var recipients []id.IdentityKey
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, id.IdentityKey(key))
	}
	return recipients, rows.Err()
}

func (s *PostgresStore) ListBroadcasts(ctx context.Context, sender id.IdentityKey) ([]models.BroadcastSummary, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT broadcast_id, min(type), min(priority), min(message), bool_or(is_story),
		       count(*), min(created_at), min(expires_at)
		FROM notifications
		WHERE sender = $1 AND broadcast_id IS NOT NULL
		GROUP BY broadcast_id
		ORDER BY min(created_at) DESC
	`, string(sender))
	if err != nil {
		return nil, fmt.Errorf("query broadcasts: %w", err)
	}
	defer rows.Close()

	var out []models.BroadcastSummary
	for rows.Next() {
		var (
			sum            models.BroadcastSummary
			broadcastID    uuid.UUID
			kind, priority string
		)
		err := rows.Scan(&broadcastID, &kind, &priority, &sum.Message, &sum.IsStory,
			&sum.Recipients, &sum.CreatedAt, &sum.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("scan broadcast: %w", err)
		}
		sum.BroadcastID = id.BroadcastID(broadcastID)
		sum.Type = models.Type(kind)
		sum.Priority = models.Priority(priority)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Cursor(ctx context.Context, recipient id.IdentityKey) (time.Time, error) {
	var at time.Time
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT read_through FROM feed_cursors WHERE identity_key = $1`, string(recipient)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query feed cursor: %w", err)
	}
	return at, nil
}

func (s *PostgresStore) SetCursor(ctx context.Context, recipient id.IdentityKey, readThrough time.Time) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO feed_cursors (identity_key, read_through)
		VALUES ($1, $2)
		ON CONFLICT (identity_key)
		DO UPDATE SET read_through = GREATEST(feed_cursors.read_through, EXCLUDED.read_through)
	`, string(recipient), readThrough)
	if err != nil {
		return fmt.Errorf("upsert feed cursor: %w", err)
	}
	return nil
}

func (s *PostgresStore) Purge(ctx context.Context, cutoff, now time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM notifications
		WHERE (NOT is_story AND created_at < $1)
		   OR (is_story AND expires_at < $2)
	`, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) DeleteRelated(ctx context.Context, setID id.SetID) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM notifications WHERE related_set_id = $1`, uuid.UUID(setID))
	if err != nil {
		return 0, fmt.Errorf("delete related notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete related notifications: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*models.Notification, error) {
	var (
		n                  models.Notification
		nid                uuid.UUID
		recipient, sender  string
		kind, priority     string
		mediaRefs          pq.StringArray
		related, broadcast uuid.NullUUID
	)
	err := row.Scan(&nid, &recipient, &sender, &kind, &priority, &n.Message, &mediaRefs,
		&related, &broadcast, &n.IsStory, &n.ExpiresAt, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.ID = id.NotificationID(nid)
	n.Recipient = id.IdentityKey(recipient)
	n.Sender = id.IdentityKey(sender)
	n.Type = models.Type(kind)
	n.Priority = models.Priority(priority)
	if len(mediaRefs) > 0 {
		n.MediaRefs = []string(mediaRefs)
	}
	if related.Valid {
		setID := id.SetID(related.UUID)
		n.RelatedSetID = &setID
	}
	if broadcast.Valid {
		b := id.BroadcastID(broadcast.UUID)
		n.BroadcastID = &b
	}
	return &n, nil
}
