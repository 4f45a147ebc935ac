package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// AlertRepository records SLA alerts. The (ticket_id, kind) unique constraint
// guarantees each alert is stored at most once across instances.
type AlertRepository interface {
	ListKeysForTickets(ctx context.Context, ticketIDs []string) ([]domain.AlertKey, error)
	// InsertWithNotifications stores alerts and returns only the ones that did
	// not exist yet. The notifications build returns for those alerts are
	// written in the same transaction, so either both land or neither does.
	InsertWithNotifications(ctx context.Context, alerts []domain.Alert, build func(inserted []domain.Alert) []domain.Notification) ([]domain.Alert, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Alert, error)
}

type alertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository builds the repository.
func NewAlertRepository(pool *pgxpool.Pool) AlertRepository {
	return &alertRepository{pool: pool}
}

func (r *alertRepository) ListKeysForTickets(ctx context.Context, ticketIDs []string) ([]domain.AlertKey, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ticket_id, kind FROM ticket_alerts WHERE ticket_id = ANY($1::uuid[])`
	rows, err := r.pool.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.AlertKey
	for rows.Next() {
		var key domain.AlertKey
		if err := rows.Scan(&key.TicketID, &key.Kind); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *alertRepository) InsertWithNotifications(ctx context.Context, alerts []domain.Alert, build func(inserted []domain.Alert) []domain.Notification) ([]domain.Alert, error) {
	if len(alerts) == 0 {
		return nil, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin alert tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted, err := insertAlerts(ctx, tx, alerts)
	if err != nil {
		return nil, err
	}
	if build != nil && len(inserted) > 0 {
		if err := copyNotifications(ctx, tx, build(inserted)); err != nil {
			return nil, fmt.Errorf("insert alert notifications: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit alert tx: %w", err)
	}
	return inserted, nil
}

func insertAlerts(ctx context.Context, tx pgx.Tx, alerts []domain.Alert) ([]domain.Alert, error) {
	const query = `
        INSERT INTO ticket_alerts (ticket_id, kind, sent_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (ticket_id, kind) DO NOTHING
        RETURNING id, sent_at`

	batch := &pgx.Batch{}
	for _, alert := range alerts {
		batch.Queue(query, alert.TicketID, alert.Kind, alert.SentAt)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	inserted := make([]domain.Alert, 0, len(alerts))
	for _, alert := range alerts {
		stored := alert
		err := results.QueryRow().Scan(&stored.ID, &stored.SentAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert alert %s for ticket %s: %w", alert.Kind, alert.TicketID, err)
		}
		inserted = append(inserted, stored)
	}
	return inserted, nil
}

func (r *alertRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Alert, error) {
	const query = `
        SELECT id, ticket_id, kind, sent_at
        FROM ticket_alerts WHERE ticket_id=$1 ORDER BY sent_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Alert
	for rows.Next() {
		var alert domain.Alert
		if err := rows.Scan(&alert.ID, &alert.TicketID, &alert.Kind, &alert.SentAt); err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}
