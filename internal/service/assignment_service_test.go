package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/service"
	"github.com/deskflow/helpdesk-service/internal/testutil"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newAssignmentService(store *testutil.Store) *service.AssignmentService {
	repos := store.Repositories()
	return service.NewAssignmentService(service.AssignmentDependencies{
		RuleRepo:   repos.Rules,
		UserRepo:   repos.Users,
		TicketRepo: repos.Tickets,
	})
}

// seedUser adds an active user created at epoch+offset so candidate order is fixed.
func seedUser(store *testutil.Store, id string, role domain.UserRole, offset time.Duration) domain.User {
	return store.AddUser(domain.User{
		ID:        id,
		Name:      id,
		Email:     id + "@example.com",
		Role:      role,
		Active:    true,
		CreatedAt: epoch.Add(offset),
	})
}

func seedOpenTickets(store *testutil.Store, assigneeID string, n int) {
	for i := 0; i < n; i++ {
		store.AddTicket(domain.Ticket{
			Title:       "load",
			Type:        "bug",
			Priority:    domain.TicketPriorityLow,
			Status:      domain.TicketStatusAssigned,
			RequesterID: "requester",
			AssigneeID:  ptr(assigneeID),
		})
	}
}

func TestResolveAutoAssigneeSkipsTypeMismatch(t *testing.T) {
	store := testutil.NewStore()
	seedUser(store, "u1", domain.UserRoleUser, 0)
	seedUser(store, "u2", domain.UserRoleUser, time.Minute)
	store.AddRule(domain.AssignmentRule{
		Name: "A", Orden: 1, Active: true, TicketType: ptr("bug"),
		Target: domain.RolePoolTarget{Role: domain.UserRoleUser, MaxActive: ptr(2)},
	})
	store.AddRule(domain.AssignmentRule{
		Name: "B", Orden: 2, Active: true,
		Target: domain.SpecificUserTarget{UserID: "u1"},
	})

	user, err := newAssignmentService(store).ResolveAutoAssignee(context.Background(), service.AssignmentRequest{
		Type: "feature", Priority: domain.TicketPriorityMedium,
	})

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)
}

func TestResolveAutoAssigneePicksLeastLoaded(t *testing.T) {
	store := testutil.NewStore()
	seedUser(store, "busy", domain.UserRoleUser, 0)
	seedUser(store, "idle", domain.UserRoleUser, time.Minute)
	seedOpenTickets(store, "busy", 2)
	store.AddRule(domain.AssignmentRule{
		Name: "pool", Orden: 1, Active: true,
		Target: domain.RolePoolTarget{Role: domain.UserRoleUser},
	})

	user, err := newAssignmentService(store).ResolveAutoAssignee(context.Background(), service.AssignmentRequest{Type: "bug", Priority: domain.TicketPriorityLow})

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "idle", user.ID)
}

func TestResolveAutoAssigneeTiesGoToFirstCandidate(t *testing.T) {
	store := testutil.NewStore()
	seedUser(store, "first", domain.UserRoleUser, 0)
	seedUser(store, "second", domain.UserRoleUser, time.Minute)
	store.AddRule(domain.AssignmentRule{
		Name: "pool", Orden: 1, Active: true,
		Target: domain.RolePoolTarget{},
	})
	svc := newAssignmentService(store)

	for i := 0; i < 5; i++ {
		user, err := svc.ResolveAutoAssignee(context.Background(), service.AssignmentRequest{Type: "bug", Priority: domain.TicketPriorityHigh})
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "first", user.ID)
	}
}

func TestResolveAutoAssigneeRespectsMaxActive(t *testing.T) {
	store := testutil.NewStore()
	seedUser(store, "a", domain.UserRoleUser, 0)
	seedUser(store, "b", domain.UserRoleUser, time.Minute)
	seedOpenTickets(store, "a", 2)
	seedOpenTickets(store, "b", 2)
	store.AddRule(domain.AssignmentRule{
		Name: "capped", Orden: 1, Active: true,
		Target: domain.RolePoolTarget{Role: domain.UserRoleUser, MaxActive: ptr(2)},
	})
	store.AddRule(domain.AssignmentRule{
		Name: "supervisors", Orden: 2, Active: true,
		Target: domain.RolePoolTarget{Role: domain.UserRoleSupervisor},
	})
	seedUser(store, "sup", domain.UserRoleSupervisor, 2*time.Minute)

	user, err := newAssignmentService(store).ResolveAutoAssignee(context.Background(), service.AssignmentRequest{Type: "bug", Priority: domain.TicketPriorityLow})

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "sup", user.ID)
}

func TestResolveAutoAssigneeFinishedTicketsDoNotCountAsLoad(t *testing.T) {
	store := testutil.NewStore()
	seedUser(store, "a", domain.UserRoleUser, 0)
	seedUser(store, "b", domain.UserRoleUser, time.Minute)
	seedOpenTickets(store, "b", 1)
	for i := 0; i < 3; i++ {
		store.AddTicket(domain.Ticket{Status: domain.TicketStatusFinished, RequesterID: "r", AssigneeID: ptr("a")})
	}
	store.AddTicket(domain.Ticket{Status: domain.TicketStatusStarted, RequesterID: "r", AssigneeID: ptr("a"), DeletedAt: ptr(epoch)})
	store.AddRule(domain.AssignmentRule{Name: "pool", Orden: 1, Active: true, Target: domain.RolePoolTarget{}})

	user, err := newAssignmentService(store).ResolveAutoAssignee(context.Background(), service.AssignmentRequest{Type: "bug", Priority: domain.TicketPriorityLow})

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "a", user.ID)
}

func TestResolveAutoAssigneeInactiveSpecificUserFallsThrough(t *testing.T) {
	store := testutil.NewStore()
	store.AddUser(domain.User{ID: "gone", Name: "gone", Email: "gone@example.com", Role: domain.UserRoleUser})
	seedUser(store, "backup", domain.UserRoleUser, 0)
	store.AddRule(domain.AssignmentRule{Name: "gone", Orden: 1, Active: true, Target: domain.SpecificUserTarget{UserID: "gone"}})
	store.AddRule(domain.AssignmentRule{Name: "missing", Orden: 2, Active: true, Target: domain.SpecificUserTarget{UserID: "nobody"}})
	store.AddRule(domain.AssignmentRule{Name: "backup", Orden: 3, Active: true, Target: domain.SpecificUserTarget{UserID: "backup"}})

	user, err := newAssignmentService(store).ResolveAutoAssignee(context.Background(), service.AssignmentRequest{Type: "bug", Priority: domain.TicketPriorityLow})

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "backup", user.ID)
}

func TestResolveAutoAssigneeFilters(t *testing.T) {
	store := testutil.NewStore()
	seedUser(store, "high", domain.UserRoleUser, 0)
	store.AddRule(domain.AssignmentRule{
		Name: "high only", Orden: 1, Active: true, Priority: ptr(domain.TicketPriorityHigh),
		Target: domain.SpecificUserTarget{UserID: "high"},
	})
	store.AddRule(domain.AssignmentRule{
		Name: "inactive catch-all", Orden: 0, Active: false,
		Target: domain.SpecificUserTarget{UserID: "high"},
	})
	svc := newAssignmentService(store)

	user, err := svc.ResolveAutoAssignee(context.Background(), service.AssignmentRequest{Type: "bug", Priority: domain.TicketPriorityLow})
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = svc.ResolveAutoAssignee(context.Background(), service.AssignmentRequest{Type: "bug", Priority: domain.TicketPriorityHigh})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "high", user.ID)
}

func TestResolveAutoAssigneeNoRules(t *testing.T) {
	store := testutil.NewStore()
	seedUser(store, "u1", domain.UserRoleUser, 0)

	user, err := newAssignmentService(store).ResolveAutoAssignee(context.Background(), service.AssignmentRequest{Type: "bug", Priority: domain.TicketPriorityLow})

	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestResolveAutoAssigneePropagatesStoreErrors(t *testing.T) {
	store := testutil.NewStore()
	seedUser(store, "u1", domain.UserRoleUser, 0)
	store.AddRule(domain.AssignmentRule{Name: "pool", Orden: 1, Active: true, Target: domain.RolePoolTarget{}})
	boom := errors.New("connection reset")
	store.FailOn("tickets.CountOpenByAssignee", boom)

	user, err := newAssignmentService(store).ResolveAutoAssignee(context.Background(), service.AssignmentRequest{Type: "bug", Priority: domain.TicketPriorityLow})

	assert.Nil(t, user)
	assert.ErrorIs(t, err, boom)
}

func TestAssignmentRuleCRUD(t *testing.T) {
	store := testutil.NewStore()
	supervisor := seedUser(store, "sup", domain.UserRoleSupervisor, 0)
	user := seedUser(store, "u1", domain.UserRoleUser, time.Minute)
	svc := newAssignmentService(store)
	ctx := context.Background()

	_, err := svc.CreateRule(ctx, &user, service.AssignmentRuleInput{Name: "x", Active: true})
	assertCode(t, err, "FORBIDDEN")

	_, err = svc.CreateRule(ctx, &supervisor, service.AssignmentRuleInput{
		Name:         "both",
		TargetUserID: ptr("u1"),
		TargetRole:   ptr(domain.UserRoleUser),
	})
	assertCode(t, err, "VALIDATION_FAILED")

	_, err = svc.CreateRule(ctx, &supervisor, service.AssignmentRuleInput{Name: "ghost", TargetUserID: ptr("nobody")})
	assertCode(t, err, "NOT_FOUND")

	rule, err := svc.CreateRule(ctx, &supervisor, service.AssignmentRuleInput{
		Name: "bugs", Orden: 3, Active: true, TicketType: ptr(" bug "),
		TargetRole: ptr(domain.UserRoleUser), MaxActive: ptr(4),
	})
	require.NoError(t, err)
	assert.Equal(t, "bug", *rule.TicketType)
	assert.Equal(t, domain.RolePoolTarget{Role: domain.UserRoleUser, MaxActive: ptr(4)}, rule.Target)

	updated, err := svc.UpdateRule(ctx, &supervisor, rule.ID, service.AssignmentRuleInput{
		Name: "bugs to u1", Orden: 1, Active: true, TargetUserID: ptr("u1"),
	})
	require.NoError(t, err)
	assert.Equal(t, rule.ID, updated.ID)
	assert.Equal(t, domain.SpecificUserTarget{UserID: "u1"}, updated.Target)

	rules, err := svc.ListRules(ctx, &supervisor)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "bugs to u1", rules[0].Name)

	require.NoError(t, svc.DeleteRule(ctx, &supervisor, rule.ID))
	assertCode(t, svc.DeleteRule(ctx, &supervisor, rule.ID), "NOT_FOUND")
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.ToDomainError(err).Code)
}
