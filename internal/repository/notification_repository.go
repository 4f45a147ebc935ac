package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// NotificationRepository stores per-recipient inbox entries.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	// CreateBatch bulk-loads notifications with COPY. IDs are not populated.
	CreateBatch(ctx context.Context, notifications []domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) (*domain.Notification, error)
}

const notificationColumns = `id, recipient_id, kind, title, message, reference_type, reference_id, created_at, read_at`

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds the repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_id, kind, title, message, reference_type, reference_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		n.RecipientID,
		n.Kind,
		n.Title,
		n.Message,
		n.ReferenceType,
		n.ReferenceID,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []domain.Notification) error {
	return copyNotifications(ctx, r.pool, notifications)
}

// copier is satisfied by both *pgxpool.Pool and pgx.Tx.
type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

func copyNotifications(ctx context.Context, db copier, notifications []domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(notifications))
	for _, n := range notifications {
		recipient, err := uuid.Parse(n.RecipientID)
		if err != nil {
			return fmt.Errorf("invalid recipient id %q: %w", n.RecipientID, err)
		}
		createdAt := n.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		rows = append(rows, []any{recipient, string(n.Kind), n.Title, n.Message, n.ReferenceType, n.ReferenceID, createdAt})
	}

	copied, err := db.CopyFrom(ctx,
		pgx.Identifier{"notifications"},
		[]string{"recipient_id", "kind", "title", "message", "reference_type", "reference_id", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return err
	}
	if int(copied) != len(rows) {
		return fmt.Errorf("copied %d of %d notifications", copied, len(rows))
	}
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id=$1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

// MarkRead sets read_at once. Marking an already read notification returns it unchanged.
func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (*domain.Notification, error) {
	query := `
        UPDATE notifications SET read_at = COALESCE(read_at, $3)
        WHERE id=$1 AND recipient_id=$2
        RETURNING ` + notificationColumns
	return scanNotification(r.pool.QueryRow(ctx, query, id, recipientID, at))
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.Kind,
		&n.Title,
		&n.Message,
		&n.ReferenceType,
		&n.ReferenceID,
		&n.CreatedAt,
		&n.ReadAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}
