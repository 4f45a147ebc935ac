package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/service"
	"github.com/deskflow/helpdesk-service/internal/sla"
	"github.com/deskflow/helpdesk-service/internal/testutil"
)

type ticketFixture struct {
	store   *testutil.Store
	svc     *service.TicketService
	now     time.Time
	advance func(time.Duration)
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	store := testutil.NewStore()
	repos := store.Repositories()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())

	f := &ticketFixture{store: store, now: epoch}
	f.advance = func(d time.Duration) { f.now = f.now.Add(d) }
	clock := func() time.Time { return f.now }

	service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:       dispatcher,
		NotificationRepo: repos.Notifications,
		Clock:            clock,
	}).RegisterHandlers()

	f.svc = service.NewTicketService(service.TicketDependencies{
		TicketRepo:     repos.Tickets,
		UserRepo:       repos.Users,
		DepartmentRepo: repos.Departments,
		HistoryRepo:    repos.History,
		CommentRepo:    repos.Comments,
		AlertRepo:      repos.Alerts,
		Assigner:       newAssignmentService(store),
		Dispatcher:     dispatcher,
		Clock:          clock,
	})
	return f
}

func (f *ticketFixture) create(t *testing.T, actor *domain.User, priority domain.TicketPriority) *service.TicketView {
	t.Helper()
	view, err := f.svc.CreateTicket(context.Background(), actor, service.TicketCreateInput{
		Title:    "VPN drops every hour",
		Type:     "network",
		Priority: priority,
	})
	require.NoError(t, err)
	return view
}

func TestCreateTicketFixesDueDatesFromPriority(t *testing.T) {
	f := newTicketFixture(t)
	requester := seedUser(f.store, "req", domain.UserRoleUser, 0)

	view := f.create(t, &requester, domain.TicketPriorityHigh)

	ticket := view.Ticket
	assert.Equal(t, domain.TicketStatusCreated, ticket.Status)
	assert.Regexp(t, `^TCK-[0-9A-F]{8}$`, ticket.Code)
	assert.Equal(t, "req", ticket.RequesterID)
	require.NotNil(t, ticket.SLA.ResponseDueAt)
	require.NotNil(t, ticket.SLA.ResolutionDueAt)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), *ticket.SLA.ResponseDueAt)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), *ticket.SLA.ResolutionDueAt)
	assert.Equal(t, 60, ticket.SLA.ResponseMinutes)
	assert.Equal(t, 480, ticket.SLA.ResolutionMinutes)
	assert.Equal(t, sla.StateOK, view.SLA.Overall)

	history := f.store.History()
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypeCreated, history[0].ChangeType)
}

func TestCreateTicketDefaultsPriorityAndAcceptsLowercase(t *testing.T) {
	f := newTicketFixture(t)
	requester := seedUser(f.store, "req", domain.UserRoleUser, 0)

	defaulted := f.create(t, &requester, "")
	lower := f.create(t, &requester, "low")

	assert.Equal(t, domain.TicketPriorityMedium, defaulted.Ticket.Priority)
	assert.Equal(t, domain.TicketPriorityLow, lower.Ticket.Priority)
	assert.Equal(t, 480, lower.Ticket.SLA.ResponseMinutes)
}

func TestCreateTicketDueDateOverrides(t *testing.T) {
	f := newTicketFixture(t)
	requester := seedUser(f.store, "req", domain.UserRoleUser, 0)
	due := epoch.Add(15 * time.Minute)

	view, err := f.svc.CreateTicket(context.Background(), &requester, service.TicketCreateInput{
		Title: "urgent", Priority: domain.TicketPriorityLow, ResponseDueAt: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, due, *view.Ticket.SLA.ResponseDueAt)
	assert.Equal(t, epoch.Add(48*time.Hour), *view.Ticket.SLA.ResolutionDueAt)

	past := epoch.Add(-time.Minute)
	_, err = f.svc.CreateTicket(context.Background(), &requester, service.TicketCreateInput{
		Title: "late", ResolutionDueAt: &past,
	})
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestCreateTicketValidation(t *testing.T) {
	f := newTicketFixture(t)
	requester := seedUser(f.store, "req", domain.UserRoleUser, 0)
	f.store.AddDepartment(domain.Department{ID: "closed", Name: "Closed", IsActive: false})

	_, err := f.svc.CreateTicket(context.Background(), &requester, service.TicketCreateInput{Title: "  ", Priority: "URGENT"})
	assertCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.CreateTicket(context.Background(), &requester, service.TicketCreateInput{Title: "x", DepartmentID: ptr("missing")})
	assertCode(t, err, "NOT_FOUND")

	_, err = f.svc.CreateTicket(context.Background(), &requester, service.TicketCreateInput{Title: "x", DepartmentID: ptr("closed")})
	assertCode(t, err, "CONFLICT")

	_, err = f.svc.CreateTicket(context.Background(), nil, service.TicketCreateInput{Title: "x"})
	assertCode(t, err, "UNAUTHORIZED")
	assert.Zero(t, f.store.Calls("tickets.Create"))
}

func TestCreateTicketAutoAssigns(t *testing.T) {
	f := newTicketFixture(t)
	requester := seedUser(f.store, "req", domain.UserRoleSupervisor, 0)
	seedUser(f.store, "agent", domain.UserRoleUser, time.Minute)
	f.store.AddRule(domain.AssignmentRule{Name: "agents", Orden: 1, Active: true, Target: domain.RolePoolTarget{}})

	view := f.create(t, &requester, domain.TicketPriorityMedium)

	ticket := view.Ticket
	assert.Equal(t, domain.TicketStatusAssigned, ticket.Status)
	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, "agent", *ticket.AssigneeID)
	require.NotNil(t, ticket.AssignedAt)
	assert.Equal(t, epoch, *ticket.AssignedAt)

	history := f.store.History()
	require.Len(t, history, 2)
	assert.Equal(t, domain.ChangeTypeCreated, history[0].ChangeType)
	assert.Equal(t, domain.ChangeTypeAssignee, history[1].ChangeType)
	assert.Nil(t, history[1].ChangedByID)
	assert.Equal(t, true, history[1].NewValue["auto"])

	notifications := f.store.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, "agent", notifications[0].RecipientID)
	assert.Equal(t, "Ticket assigned", notifications[0].Title)
	assert.Contains(t, notifications[0].Message, "automatically")
}

func TestCreateTicketResolverFailureLeavesTicketUnassigned(t *testing.T) {
	f := newTicketFixture(t)
	requester := seedUser(f.store, "req", domain.UserRoleUser, 0)
	f.store.FailOn("rules.List", errors.New("rules table locked"))

	view := f.create(t, &requester, domain.TicketPriorityHigh)

	assert.Equal(t, domain.TicketStatusCreated, view.Ticket.Status)
	assert.Nil(t, view.Ticket.AssigneeID)
	stored, ok := f.store.Ticket(view.Ticket.ID)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusCreated, stored.Status)
	assert.Len(t, f.store.History(), 1)
}

func TestCreateTicketHistoryFailureStillCreates(t *testing.T) {
	f := newTicketFixture(t)
	requester := seedUser(f.store, "req", domain.UserRoleSupervisor, 0)
	seedUser(f.store, "agent", domain.UserRoleUser, time.Minute)
	f.store.AddRule(domain.AssignmentRule{Name: "agents", Orden: 1, Active: true, Target: domain.RolePoolTarget{}})
	f.store.FailOn("history.Create", errors.New("history table locked"))

	view := f.create(t, &requester, domain.TicketPriorityMedium)

	stored, ok := f.store.Ticket(view.Ticket.ID)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusAssigned, stored.Status)
	assert.Equal(t, 2, f.store.Calls("history.Create"))
	assert.Empty(t, f.store.History())

	notifications := f.store.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, "agent", notifications[0].RecipientID)
}

func TestCreateTicketWithoutMatchingRuleStaysCreated(t *testing.T) {
	f := newTicketFixture(t)
	requester := seedUser(f.store, "req", domain.UserRoleUser, 0)
	f.store.AddRule(domain.AssignmentRule{Name: "hw", Orden: 1, Active: true, TicketType: ptr("hardware"),
		Target: domain.SpecificUserTarget{UserID: "req"}})

	view := f.create(t, &requester, domain.TicketPriorityHigh)

	assert.Equal(t, domain.TicketStatusCreated, view.Ticket.Status)
	assert.Nil(t, view.Ticket.AssigneeID)
}

func TestUpdateStatusWorkflow(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	requester := seedUser(f.store, "req", domain.UserRoleUser, 0)
	sup := seedUser(f.store, "sup", domain.UserRoleSupervisor, time.Minute)
	view := f.create(t, &requester, domain.TicketPriorityHigh)
	id := view.Ticket.ID

	_, err := f.svc.UpdateStatus(ctx, &sup, id, domain.TicketStatusFinished)
	assertCode(t, err, "CONFLICT")

	_, err = f.svc.UpdateStatus(ctx, &sup, id, domain.TicketStatusAssigned)
	assertCode(t, err, "CONFLICT")

	_, err = f.svc.UpdateStatus(ctx, &requester, id, domain.TicketStatusStarted)
	assertCode(t, err, "FORBIDDEN")

	_, err = f.svc.UpdateStatus(ctx, &sup, id, "ON_HOLD")
	assertCode(t, err, "VALIDATION_FAILED")

	f.advance(20 * time.Minute)
	started, err := f.svc.UpdateStatus(ctx, &sup, id, domain.TicketStatusStarted)
	require.NoError(t, err)
	require.NotNil(t, started.Ticket.FirstResponseAt)
	assert.Equal(t, epoch.Add(20*time.Minute), *started.Ticket.FirstResponseAt)
	assert.Equal(t, sla.StateMet, started.SLA.Response.State)

	_, err = f.svc.UpdateStatus(ctx, &sup, id, domain.TicketStatusPendingValidation)
	require.NoError(t, err)

	f.advance(time.Hour)
	finished, err := f.svc.UpdateStatus(ctx, &requester, id, domain.TicketStatusFinished)
	require.NoError(t, err)
	require.NotNil(t, finished.Ticket.ClosedAt)
	assert.Equal(t, sla.StateMet, finished.SLA.Resolution.State)

	reopened, err := f.svc.UpdateStatus(ctx, &requester, id, domain.TicketStatusReopened)
	require.NoError(t, err)
	assert.Nil(t, reopened.Ticket.ClosedAt)
	assert.Equal(t, epoch.Add(20*time.Minute), *reopened.Ticket.FirstResponseAt)

	var statusChanges int
	for _, entry := range f.store.History() {
		if entry.ChangeType == domain.ChangeTypeStatus {
			statusChanges++
		}
	}
	assert.Equal(t, 4, statusChanges)

	var requesterInbox int
	for _, n := range f.store.Notifications() {
		if n.RecipientID == "req" {
			requesterInbox++
		}
	}
	assert.Equal(t, 2, requesterInbox, "requester is not notified of their own changes")
}

func TestCommentFromStaffCountsAsFirstResponse(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	requester := seedUser(f.store, "req", domain.UserRoleUser, 0)
	sup := seedUser(f.store, "sup", domain.UserRoleSupervisor, time.Minute)
	view := f.create(t, &requester, domain.TicketPriorityHigh)

	_, err := f.svc.AddComment(ctx, &requester, view.Ticket.ID, "any news?")
	require.NoError(t, err)
	stored, _ := f.store.Ticket(view.Ticket.ID)
	assert.Nil(t, stored.FirstResponseAt)

	_, err = f.svc.AddComment(ctx, &requester, view.Ticket.ID, "   ")
	assertCode(t, err, "VALIDATION_FAILED")

	f.advance(10 * time.Minute)
	comment, err := f.svc.AddComment(ctx, &sup, view.Ticket.ID, "looking into it")
	require.NoError(t, err)
	assert.Equal(t, "sup", comment.AuthorID)
	stored, _ = f.store.Ticket(view.Ticket.ID)
	require.NotNil(t, stored.FirstResponseAt)
	assert.Equal(t, epoch.Add(10*time.Minute), *stored.FirstResponseAt)

	comments, err := f.svc.ListComments(ctx, &requester, view.Ticket.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, comments, 2)

	var requesterInbox []domain.Notification
	for _, n := range f.store.Notifications() {
		if n.RecipientID == "req" {
			requesterInbox = append(requesterInbox, n)
		}
	}
	require.Len(t, requesterInbox, 1)
	assert.Equal(t, "New comment", requesterInbox[0].Title)
}

func TestTicketVisibility(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	alice := seedUser(f.store, "alice", domain.UserRoleUser, 0)
	bob := seedUser(f.store, "bob", domain.UserRoleUser, time.Minute)
	sup := seedUser(f.store, "sup", domain.UserRoleSupervisor, 2*time.Minute)
	mine := f.create(t, &alice, domain.TicketPriorityLow)
	f.create(t, &bob, domain.TicketPriorityLow)

	_, err := f.svc.GetTicket(ctx, &bob, mine.Ticket.ID)
	assertCode(t, err, "FORBIDDEN")
	_, err = f.svc.ListHistory(ctx, &bob, mine.Ticket.ID)
	assertCode(t, err, "FORBIDDEN")
	_, err = f.svc.AddComment(ctx, &bob, mine.Ticket.ID, "hi")
	assertCode(t, err, "FORBIDDEN")

	own, err := f.svc.ListTickets(ctx, &alice, service.TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.Ticket.ID, own[0].Ticket.ID)

	all, err := f.svc.ListTickets(ctx, &sup, service.TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.GetTicket(ctx, &sup, "missing")
	assertCode(t, err, "NOT_FOUND")
}

func TestAssignTicket(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	requester := seedUser(f.store, "req", domain.UserRoleUser, 0)
	sup := seedUser(f.store, "sup", domain.UserRoleSupervisor, time.Minute)
	seedUser(f.store, "agent", domain.UserRoleUser, 2*time.Minute)
	f.store.AddUser(domain.User{ID: "gone", Name: "gone", Email: "gone@example.com", Role: domain.UserRoleUser})
	view := f.create(t, &requester, domain.TicketPriorityMedium)
	id := view.Ticket.ID

	_, err := f.svc.AssignTicket(ctx, &requester, id, "agent")
	assertCode(t, err, "FORBIDDEN")
	_, err = f.svc.AssignTicket(ctx, &sup, id, "gone")
	assertCode(t, err, "CONFLICT")
	_, err = f.svc.AssignTicket(ctx, &sup, id, "nobody")
	assertCode(t, err, "NOT_FOUND")

	assigned, err := f.svc.AssignTicket(ctx, &sup, id, "agent")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, assigned.Ticket.Status)
	assert.Equal(t, "agent", *assigned.Ticket.AssigneeID)
	historyLen := len(f.store.History())

	again, err := f.svc.AssignTicket(ctx, &sup, id, "agent")
	require.NoError(t, err)
	assert.Equal(t, "agent", *again.Ticket.AssigneeID)
	assert.Len(t, f.store.History(), historyLen)

	var agentInbox int
	for _, n := range f.store.Notifications() {
		if n.RecipientID == "agent" && n.Title == "Ticket assigned" {
			agentInbox++
		}
	}
	assert.Equal(t, 1, agentInbox)
}

func TestDeleteTicketRequiresAdmin(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	requester := seedUser(f.store, "req", domain.UserRoleUser, 0)
	sup := seedUser(f.store, "sup", domain.UserRoleSupervisor, time.Minute)
	admin := seedUser(f.store, "admin", domain.UserRoleAdmin, 2*time.Minute)
	view := f.create(t, &requester, domain.TicketPriorityHigh)

	assertCode(t, f.svc.DeleteTicket(ctx, &sup, view.Ticket.ID), "FORBIDDEN")
	require.NoError(t, f.svc.DeleteTicket(ctx, &admin, view.Ticket.ID))

	_, err := f.svc.GetTicket(ctx, &admin, view.Ticket.ID)
	assertCode(t, err, "NOT_FOUND")
	assertCode(t, f.svc.DeleteTicket(ctx, &admin, view.Ticket.ID), "NOT_FOUND")

	stored, ok := f.store.Ticket(view.Ticket.ID)
	require.True(t, ok)
	assert.NotNil(t, stored.DeletedAt)
}
