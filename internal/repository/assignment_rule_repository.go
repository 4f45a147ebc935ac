package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// AssignmentRuleRepository persists auto-assignment rules.
type AssignmentRuleRepository interface {
	Create(ctx context.Context, rule *domain.AssignmentRule) error
	Update(ctx context.Context, rule *domain.AssignmentRule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.AssignmentRule, error)
	// List returns rules in evaluation order: orden ascending, then creation time.
	List(ctx context.Context, activeOnly bool) ([]domain.AssignmentRule, error)
}

const assignmentRuleColumns = `id, name, orden, active, ticket_type, priority, target_user_id, target_role,
       max_active, created_at, updated_at`

type assignmentRuleRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRuleRepository builds the repository.
func NewAssignmentRuleRepository(pool *pgxpool.Pool) AssignmentRuleRepository {
	return &assignmentRuleRepository{pool: pool}
}

func (r *assignmentRuleRepository) Create(ctx context.Context, rule *domain.AssignmentRule) error {
	cols, err := targetColumnsOf(rule.Target)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO assignment_rules (name, orden, active, ticket_type, priority, target_user_id, target_role, max_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.Orden,
		rule.Active,
		rule.TicketType,
		rule.Priority,
		cols.userID,
		cols.role,
		cols.maxActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (r *assignmentRuleRepository) Update(ctx context.Context, rule *domain.AssignmentRule) error {
	cols, err := targetColumnsOf(rule.Target)
	if err != nil {
		return err
	}
	const query = `
        UPDATE assignment_rules SET name=$1, orden=$2, active=$3, ticket_type=$4, priority=$5,
            target_user_id=$6, target_role=$7, max_active=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.Orden,
		rule.Active,
		rule.TicketType,
		rule.Priority,
		cols.userID,
		cols.role,
		cols.maxActive,
		rule.ID,
	).Scan(&rule.UpdatedAt)
}

func (r *assignmentRuleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM assignment_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *assignmentRuleRepository) GetByID(ctx context.Context, id string) (*domain.AssignmentRule, error) {
	query := `SELECT ` + assignmentRuleColumns + ` FROM assignment_rules WHERE id=$1`
	return scanAssignmentRule(r.pool.QueryRow(ctx, query, id))
}

func (r *assignmentRuleRepository) List(ctx context.Context, activeOnly bool) ([]domain.AssignmentRule, error) {
	query := `SELECT ` + assignmentRuleColumns + ` FROM assignment_rules`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY orden ASC, created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentRule
	for rows.Next() {
		rule, err := scanAssignmentRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	return result, rows.Err()
}

type targetColumns struct {
	userID    *string
	role      *domain.UserRole
	maxActive *int
}

func targetColumnsOf(target domain.AssignmentTarget) (targetColumns, error) {
	switch t := target.(type) {
	case domain.SpecificUserTarget:
		return targetColumns{userID: &t.UserID}, nil
	case domain.RolePoolTarget:
		cols := targetColumns{maxActive: t.MaxActive}
		if t.Role != "" {
			role := t.Role
			cols.role = &role
		}
		return cols, nil
	default:
		return targetColumns{}, fmt.Errorf("unsupported assignment target %T", target)
	}
}

func scanAssignmentRule(row pgx.Row) (*domain.AssignmentRule, error) {
	var (
		rule domain.AssignmentRule
		cols targetColumns
	)
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Orden,
		&rule.Active,
		&rule.TicketType,
		&rule.Priority,
		&cols.userID,
		&cols.role,
		&cols.maxActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if cols.userID != nil {
		rule.Target = domain.SpecificUserTarget{UserID: *cols.userID}
	} else {
		pool := domain.RolePoolTarget{MaxActive: cols.maxActive}
		if cols.role != nil {
			pool.Role = *cols.role
		}
		rule.Target = pool
	}
	return &rule, nil
}
