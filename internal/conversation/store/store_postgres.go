package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"hatchseed/internal/conversation/models"
	id "hatchseed/pkg/domain"
	"hatchseed/pkg/platform/sentinel"
	txcontext "hatchseed/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore keeps conversation headers, messages and cursors in three
// tables; messages and cursors cascade with their conversation.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Execer {
	return txcontext.ExecerFrom(ctx, s.db)
}

// inTx runs fn on the caller's transaction, or on a short one of its own.
func (s *PostgresStore) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	return txcontext.RunSQL(ctx, s.db, 0, func(ctx context.Context, _ *sql.Tx) error {
		return fn(ctx)
	})
}

const selectConversation = `
	SELECT id, owner_id, reviewer_id, subject, status, related_set_id, version,
	       created_at, updated_at, closed_at
	FROM conversations
`

func (s *PostgresStore) Create(ctx context.Context, conv *models.Conversation) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		var related uuid.NullUUID
		if conv.RelatedSetID != nil {
			related = uuid.NullUUID{UUID: uuid.UUID(*conv.RelatedSetID), Valid: true}
		}
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO conversations (id, owner_id, reviewer_id, subject, status,
				related_set_id, version, created_at, updated_at, closed_at)
			VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9)
		`,
			uuid.UUID(conv.ID),
			uuid.UUID(conv.OwnerID),
			uuid.UUID(conv.ReviewerID),
			conv.Subject,
			string(conv.Status),
			related,
			conv.CreatedAt,
			conv.UpdatedAt,
			conv.ClosedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert conversation: %w", err)
		}
		for _, msg := range conv.Messages {
			if err := s.insertMessage(ctx, conv.ID, msg); err != nil {
				return err
			}
		}
		conv.Version = 1
		return nil
	})
}

// Lock takes a row lock on the conversation for the caller's transaction.
func (s *PostgresStore) Lock(ctx context.Context, convID id.ConversationID) error {
	var locked uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, uuid.UUID(convID)).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, convID id.ConversationID) (*models.Conversation, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectConversation+` WHERE id = $1`, uuid.UUID(convID))
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachMessages(ctx, []*models.Conversation{conv}); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, convID id.ConversationID, msg models.Message) error {
	return s.insertMessage(ctx, convID, msg)
}

func (s *PostgresStore) insertMessage(ctx context.Context, convID id.ConversationID, msg models.Message) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO conversation_messages (conversation_id, seq, sender_role, sender_id,
			sender_name, body, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(convID), msg.Seq, string(msg.Sender), msg.SenderID, msg.SenderName, msg.Body, msg.SentAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, conv *models.Conversation) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE conversations
		SET status = $3, updated_at = $4, closed_at = $5, version = version + 1
		WHERE id = $1 AND version = $2
	`, uuid.UUID(conv.ID), conv.Version, string(conv.Status), conv.UpdatedAt, conv.ClosedAt)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	conv.Version++
	return nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.OwnerID) ([]*models.Conversation, error) {
	return s.list(ctx, selectConversation+` WHERE owner_id = $1 ORDER BY updated_at DESC, id`, uuid.UUID(owner))
}

func (s *PostgresStore) ListByReviewer(ctx context.Context, reviewer id.ReviewerID) ([]*models.Conversation, error) {
	return s.list(ctx, selectConversation+` WHERE reviewer_id = $1 ORDER BY updated_at DESC, id`, uuid.UUID(reviewer))
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]*models.Conversation, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	if err := s.attachMessages(ctx, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// attachMessages loads the messages of every conversation in one query.
func (s *PostgresStore) attachMessages(ctx context.Context, convs []*models.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	byID := make(map[id.ConversationID]*models.Conversation, len(convs))
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		byID[c.ID] = c
		ids = append(ids, c.ID.String())
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT conversation_id, seq, sender_role, sender_id, sender_name, body, sent_at
		FROM conversation_messages
		WHERE conversation_id = ANY($1::uuid[])
		ORDER BY conversation_id, seq
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			convID uuid.UUID
			sender string
			msg    models.Message
		)
		if err := rows.Scan(&convID, &msg.Seq, &sender, &msg.SenderID, &msg.SenderName, &msg.Body, &msg.SentAt); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		msg.Sender = id.Role(sender)
		if c, ok := byID[id.ConversationID(convID)]; ok {
			c.Messages = append(c.Messages, msg)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) Cursors(ctx context.Context, key id.IdentityKey) (map[id.ConversationID]int64, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT conversation_id, seq FROM conversation_read_cursors WHERE identity_key = $1`, string(key))
	if err != nil {
		return nil, fmt.Errorf("query cursors: %w", err)
	}
	defer rows.Close()

	out := make(map[id.ConversationID]int64)
	for rows.Next() {
		var (
			convID uuid.UUID
			seq    int64
		)
		if err := rows.Scan(&convID, &seq); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		out[id.ConversationID(convID)] = seq
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetCursor(ctx context.Context, key id.IdentityKey, convID id.ConversationID, seq int64) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO conversation_read_cursors (identity_key, conversation_id, seq)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity_key, conversation_id)
		DO UPDATE SET seq = GREATEST(conversation_read_cursors.seq, EXCLUDED.seq)
	`, string(key), uuid.UUID(convID), seq)
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

func (s *PostgresStore) PurgeInactive(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM conversations WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge conversations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge conversations: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) DeleteRelated(ctx context.Context, setID id.SetID) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM conversations WHERE related_set_id = $1`, uuid.UUID(setID))
	if err != nil {
		return 0, fmt.Errorf("delete related conversations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete related conversations: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*models.Conversation, error) {
	var (
		conv                    models.Conversation
		convID, owner, reviewer uuid.UUID
		status                  string
		related                 uuid.NullUUID
	)
	err := row.Scan(&convID, &owner, &reviewer, &conv.Subject, &status, &related,
		&conv.Version, &conv.CreatedAt, &conv.UpdatedAt, &conv.ClosedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	conv.ID = id.ConversationID(convID)
	conv.OwnerID = id.OwnerID(owner)
	conv.ReviewerID = id.ReviewerID(reviewer)
	conv.Status = models.Status(status)
	if related.Valid {
		setID := id.SetID(related.UUID)
		conv.RelatedSetID = &setID
	}
	return &conv, nil
}
