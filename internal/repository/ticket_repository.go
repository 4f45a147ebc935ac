package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	RequesterID  *string
	AssigneeID   *string
	DepartmentID *string
	// VisibleTo restricts results to tickets the user requested or is assigned to.
	VisibleTo   *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Type        *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence. Soft-deleted tickets are
// invisible to every read.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	CountOpenByAssignee(ctx context.Context, userIDs []string) (map[string]int, error)
	MarkBreached(ctx context.Context, ticketID string, dimension domain.SLADimension, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

const ticketColumns = `id, code, title, description, type, priority, status, requester_id, department_id,
       assignee_id, assigned_at, created_at, updated_at, first_response_at, closed_at, deleted_at,
       sla_response_minutes, sla_resolution_minutes, sla_response_due_at, sla_resolution_due_at,
       sla_response_breached_at, sla_resolution_breached_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (code, title, description, type, priority, status, requester_id, department_id,
            assignee_id, assigned_at, created_at, updated_at, sla_response_minutes, sla_resolution_minutes,
            sla_response_due_at, sla_resolution_due_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11,$12,$13,$14,$15)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Code,
		ticket.Title,
		ticket.Description,
		ticket.Type,
		ticket.Priority,
		ticket.Status,
		ticket.RequesterID,
		ticket.DepartmentID,
		ticket.AssigneeID,
		ticket.AssignedAt,
		ticket.CreatedAt,
		ticket.SLA.ResponseMinutes,
		ticket.SLA.ResolutionMinutes,
		ticket.SLA.ResponseDueAt,
		ticket.SLA.ResolutionDueAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update writes the mutable workflow fields. SLA budgets and due dates are
// fixed at creation and breach timestamps go through MarkBreached.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, department_id=$4, assignee_id=$5,
            assigned_at=$6, first_response_at=$7, closed_at=$8, updated_at=NOW()
        WHERE id=$9 AND deleted_at IS NULL
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.DepartmentID,
		ticket.AssigneeID,
		ticket.AssignedAt,
		ticket.FirstResponseAt,
		ticket.ClosedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND deleted_at IS NULL`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE deleted_at IS NULL AND status <> 'FINISHED'
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// CountOpenByAssignee returns the open ticket count per user. Users without
// open tickets are absent from the map.
func (r *ticketRepository) CountOpenByAssignee(ctx context.Context, userIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT assignee_id, COUNT(*)
        FROM tickets
        WHERE deleted_at IS NULL AND status <> 'FINISHED' AND assignee_id = ANY($1::uuid[])
        GROUP BY assignee_id`
	rows, err := r.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID string
			count  int
		)
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, err
		}
		counts[userID] = count
	}
	return counts, rows.Err()
}

// MarkBreached stamps the breach time of one SLA dimension. An existing stamp
// is never overwritten.
func (r *ticketRepository) MarkBreached(ctx context.Context, ticketID string, dimension domain.SLADimension, at time.Time) error {
	var column string
	switch dimension {
	case domain.SLADimensionResponse:
		column = "sla_response_breached_at"
	case domain.SLADimensionResolution:
		column = "sla_resolution_breached_at"
	default:
		return fmt.Errorf("unknown sla dimension %q", dimension)
	}
	query := fmt.Sprintf(`UPDATE tickets SET %[1]s=$2 WHERE id=$1 AND %[1]s IS NULL`, column)
	_, err := r.pool.Exec(ctx, query, ticketID, at)
	return err
}

func (r *ticketRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE tickets SET deleted_at=$2, updated_at=$2 WHERE id=$1 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"deleted_at IS NULL"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	if filter.VisibleTo != nil {
		args = append(args, *filter.VisibleTo)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(requester_id=%s OR assignee_id=%s)", placeholder, placeholder))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("type=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(code) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Code,
		&ticket.Title,
		&ticket.Description,
		&ticket.Type,
		&ticket.Priority,
		&ticket.Status,
		&ticket.RequesterID,
		&ticket.DepartmentID,
		&ticket.AssigneeID,
		&ticket.AssignedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ClosedAt,
		&ticket.DeletedAt,
		&ticket.SLA.ResponseMinutes,
		&ticket.SLA.ResolutionMinutes,
		&ticket.SLA.ResponseDueAt,
		&ticket.SLA.ResolutionDueAt,
		&ticket.SLA.ResponseBreachedAt,
		&ticket.SLA.ResolutionBreachedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
