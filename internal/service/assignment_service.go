package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// AssignmentService resolves auto-assignees and manages assignment rules.
type AssignmentService struct {
	rules   repository.AssignmentRuleRepository
	users   repository.UserRepository
	tickets repository.TicketRepository
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	RuleRepo   repository.AssignmentRuleRepository
	UserRepo   repository.UserRepository
	TicketRepo repository.TicketRepository
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		rules:   deps.RuleRepo,
		users:   deps.UserRepo,
		tickets: deps.TicketRepo,
	}
}

// AssignmentRequest carries the ticket attributes rules filter on.
type AssignmentRequest struct {
	Type     string
	Priority domain.TicketPriority
}

// AssignmentRuleInput describes a rule to create or replace. A rule targets
// either TargetUserID or a role pool; an empty TargetRole means the default role.
type AssignmentRuleInput struct {
	Name         string
	Orden        int
	Active       bool
	TicketType   *string
	Priority     *domain.TicketPriority
	TargetUserID *string
	TargetRole   *domain.UserRole
	MaxActive    *int
}

// ResolveAutoAssignee walks the active rules in order and returns the first
// user a matching rule can supply, or nil when no rule yields anyone.
// It never writes; store errors are returned to the caller.
func (s *AssignmentService) ResolveAutoAssignee(ctx context.Context, req AssignmentRequest) (*domain.User, error) {
	rules, err := s.rules.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load assignment rules: %w", err)
	}

	for i := range rules {
		rule := &rules[i]
		if !rule.Matches(req.Type, req.Priority) {
			continue
		}
		user, err := s.resolveTarget(ctx, rule.Target)
		if err != nil {
			return nil, fmt.Errorf("evaluate assignment rule %s: %w", rule.ID, err)
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, nil
}

func (s *AssignmentService) resolveTarget(ctx context.Context, target domain.AssignmentTarget) (*domain.User, error) {
	switch t := target.(type) {
	case domain.SpecificUserTarget:
		user, err := s.users.GetByID(ctx, t.UserID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		if !user.Active {
			return nil, nil
		}
		return user, nil
	case domain.RolePoolTarget:
		return s.leastLoaded(ctx, t)
	default:
		return nil, nil
	}
}

// leastLoaded picks the active pool member with the fewest open tickets.
// Members at or above MaxActive are skipped and ties go to the oldest account.
func (s *AssignmentService) leastLoaded(ctx context.Context, pool domain.RolePoolTarget) (*domain.User, error) {
	candidates, err := s.users.List(ctx, repository.UserFilter{
		Roles:  []domain.UserRole{pool.EffectiveRole()},
		Active: ptrBool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, candidate := range candidates {
		ids[i] = candidate.ID
	}
	loads, err := s.tickets.CountOpenByAssignee(ctx, ids)
	if err != nil {
		return nil, err
	}

	var (
		best     *domain.User
		bestLoad int
	)
	for i := range candidates {
		load := loads[candidates[i].ID]
		if pool.MaxActive != nil && load >= *pool.MaxActive {
			continue
		}
		if best == nil || load < bestLoad {
			best = &candidates[i]
			bestLoad = load
		}
	}
	return best, nil
}

// ListRules returns every rule in evaluation order.
func (s *AssignmentService) ListRules(ctx context.Context, actor *domain.User) ([]domain.AssignmentRule, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	rules, err := s.rules.List(ctx, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

// GetRule fetches a rule.
func (s *AssignmentService) GetRule(ctx context.Context, actor *domain.User, id string) (*domain.AssignmentRule, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "assignment rule", "rule_id", id)
	}
	return rule, nil
}

// CreateRule validates and stores a new rule.
func (s *AssignmentService) CreateRule(ctx context.Context, actor *domain.User, input AssignmentRuleInput) (*domain.AssignmentRule, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	rule, err := s.buildRule(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// UpdateRule replaces the rule definition.
func (s *AssignmentService) UpdateRule(ctx context.Context, actor *domain.User, id string, input AssignmentRuleInput) (*domain.AssignmentRule, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	existing, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "assignment rule", "rule_id", id)
	}
	rule, err := s.buildRule(ctx, input)
	if err != nil {
		return nil, err
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// DeleteRule removes a rule.
func (s *AssignmentService) DeleteRule(ctx context.Context, actor *domain.User, id string) error {
	if err := requireSupervisor(actor); err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return lookupError(err, "assignment rule", "rule_id", id)
	}
	return nil
}

func (s *AssignmentService) buildRule(ctx context.Context, input AssignmentRuleInput) (*domain.AssignmentRule, error) {
	details := map[string]any{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		details["name"] = "required"
	}
	if input.Orden < 0 {
		details["orden"] = "must be zero or greater"
	}
	if input.Priority != nil && !input.Priority.Valid() {
		details["priority"] = "must be one of HIGH, MEDIUM, LOW"
	}
	if input.TicketType != nil && strings.TrimSpace(*input.TicketType) == "" {
		details["ticket_type"] = "must not be blank"
	}
	if input.MaxActive != nil && *input.MaxActive <= 0 {
		details["max_active"] = "must be positive"
	}
	hasUser := input.TargetUserID != nil && *input.TargetUserID != ""
	hasRole := input.TargetRole != nil && *input.TargetRole != ""
	if hasUser && hasRole {
		details["target"] = "target either a user or a role, not both"
	}
	if hasUser && input.MaxActive != nil {
		details["max_active"] = "only applies to role targets"
	}
	if hasRole && !input.TargetRole.Valid() {
		details["target_role"] = "must be one of ADMIN, SUPERVISOR, USER"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid assignment rule", details)
	}

	rule := &domain.AssignmentRule{
		Name:     name,
		Orden:    input.Orden,
		Active:   input.Active,
		Priority: input.Priority,
	}
	if input.TicketType != nil {
		ticketType := strings.TrimSpace(*input.TicketType)
		rule.TicketType = &ticketType
	}

	if hasUser {
		user, err := s.users.GetByID(ctx, *input.TargetUserID)
		if err != nil {
			return nil, lookupError(err, "user", "user_id", *input.TargetUserID)
		}
		rule.Target = domain.SpecificUserTarget{UserID: user.ID}
		return rule, nil
	}

	pool := domain.RolePoolTarget{MaxActive: input.MaxActive}
	if hasRole {
		pool.Role = *input.TargetRole
	}
	rule.Target = pool
	return rule, nil
}
