package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apihttp "github.com/deskflow/helpdesk-service/internal/api/http"
	"github.com/deskflow/helpdesk-service/internal/api/http/handlers"
	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/service"
	"github.com/deskflow/helpdesk-service/internal/testutil"
)

type countingStarter struct{ calls atomic.Int32 }

func (s *countingStarter) Start(context.Context) { s.calls.Add(1) }

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type harness struct {
	app        *fiber.App
	store      *testutil.Store
	tokens     *auth.TokenManager
	starter    *countingStarter
	admin      domain.User
	supervisor domain.User
	agent      domain.User
	requester  domain.User
	dept       domain.Department
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	store := testutil.NewStore()
	repos := store.Repositories()

	h := &harness{store: store, tokens: auth.NewTokenManager("test-secret", 15), starter: &countingStarter{}}
	h.admin = store.AddUser(domain.User{Name: "Ada", Email: "ada@example.com", Role: domain.UserRoleAdmin, Active: true})
	h.supervisor = store.AddUser(domain.User{Name: "Sam", Email: "sam@example.com", Role: domain.UserRoleSupervisor, Active: true})
	h.agent = store.AddUser(domain.User{Name: "Alex", Email: "alex@example.com", Role: domain.UserRoleUser, Active: true})
	h.requester = store.AddUser(domain.User{Name: "Rae", Email: "rae@example.com", Role: domain.UserRoleUser, Active: true})
	h.dept = store.AddDepartment(domain.Department{Name: "IT", IsActive: true})

	dispatcher := events.NewInMemoryDispatcher(logger)
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		RuleRepo: repos.Rules, UserRepo: repos.Users, TicketRepo: repos.Tickets,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repos.Tickets, UserRepo: repos.Users, DepartmentRepo: repos.Departments,
		HistoryRepo: repos.History, CommentRepo: repos.Comments, AlertRepo: repos.Alerts,
		Assigner: assignment, Dispatcher: dispatcher, Logger: logger,
	})
	alerts := service.NewAlertService(service.AlertDependencies{
		TicketRepo: repos.Tickets, AlertRepo: repos.Alerts, UserRepo: repos.Users,
		Dispatcher: dispatcher, Logger: logger,
	})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher, NotificationRepo: repos.Notifications, Logger: logger,
		Config: config.NotificationConfig{},
	})
	notifications.RegisterHandlers()
	directory := service.NewDirectoryService(service.DirectoryDependencies{
		DepartmentRepo: repos.Departments, UserRepo: repos.Users,
	})

	h.app = fiber.New()
	apihttp.RegisterMiddlewares(h.app, logger, nil, 0)
	apihttp.RegisterRoutes(h.app, apihttp.RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-service", "test", okPinger{}, nil, nil),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Rules:          handlers.NewAssignmentRulesHandler(assignment),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		SLA:            handlers.NewSLAHandler(alerts),
		Directory:      handlers.NewDirectoryHandler(directory),
		AuthMiddleware: auth.NewAuthMiddleware(h.tokens, repos.Users),
		Scheduler:      h.starter,
	})
	return h
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (h *harness) do(t *testing.T, as *domain.User, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, _, err := h.tokens.GenerateToken(as.ID, as.Role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealthLive(t *testing.T) {
	h := newHarness(t)
	status, _ := h.do(t, nil, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPIRequiresToken(t *testing.T) {
	h := newHarness(t)
	status, env := h.do(t, nil, http.MethodGet, "/api/tickets", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestCreateTicketAutoAssigns(t *testing.T) {
	h := newHarness(t)
	status, _ := h.do(t, &h.supervisor, http.MethodPost, "/api/assignment-rules", map[string]any{
		"name":           "hardware to alex",
		"orden":          1,
		"ticket_type":    "hardware",
		"target_user_id": h.agent.ID,
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := h.do(t, &h.requester, http.MethodPost, "/api/tickets", map[string]any{
		"title":         "Laptop will not boot",
		"type":          "hardware",
		"priority":      "HIGH",
		"department_id": h.dept.ID,
	})
	require.Equal(t, http.StatusCreated, status)

	ticket := decode[struct {
		Code       string  `json:"code"`
		Status     string  `json:"status"`
		AssigneeID *string `json:"assignee_id"`
		SLA        struct {
			Overall  string `json:"overall"`
			Response struct {
				State         string `json:"state"`
				BudgetMinutes int    `json:"budget_minutes"`
			} `json:"response"`
		} `json:"sla"`
	}](t, env)
	assert.Equal(t, "ASSIGNED", ticket.Status)
	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, h.agent.ID, *ticket.AssigneeID)
	assert.Equal(t, "ok", ticket.SLA.Response.State)
	assert.Equal(t, 60, ticket.SLA.Response.BudgetMinutes)
	assert.Regexp(t, `^TCK-[0-9A-F]{8}$`, ticket.Code)
	assert.GreaterOrEqual(t, h.starter.calls.Load(), int32(1))

	// The assignee is told about the automatic assignment.
	status, env = h.do(t, &h.agent, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, status)
	inbox := decode[[]struct {
		Title string `json:"title"`
		Kind  string `json:"kind"`
	}](t, env)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Ticket assigned", inbox[0].Title)
	assert.Equal(t, "info", inbox[0].Kind)
}

func TestCreateTicketValidation(t *testing.T) {
	h := newHarness(t)
	status, env := h.do(t, &h.requester, http.MethodPost, "/api/tickets", map[string]any{
		"type":     "hardware",
		"priority": "URGENT",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, "required", env.Error.Details["title"])
	assert.Equal(t, "oneof", env.Error.Details["priority"])
}

func TestAssignmentRulesRequireSupervisor(t *testing.T) {
	h := newHarness(t)
	status, env := h.do(t, &h.requester, http.MethodGet, "/api/assignment-rules", nil)
	assert.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = h.do(t, &h.supervisor, http.MethodGet, "/api/assignment-rules", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestResolvePreviewUsesLeastLoadedPool(t *testing.T) {
	h := newHarness(t)
	h.store.AddTicket(domain.Ticket{
		Title: "busy", Type: "network", Priority: domain.TicketPriorityLow,
		Status: domain.TicketStatusAssigned, RequesterID: h.requester.ID, AssigneeID: &h.agent.ID,
	})
	status, _ := h.do(t, &h.admin, http.MethodPost, "/api/assignment-rules", map[string]any{
		"name":        "network pool",
		"orden":       0,
		"ticket_type": "network",
		"target_role": "USER",
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := h.do(t, &h.supervisor, http.MethodPost, "/api/assignment-rules/resolve", map[string]any{
		"type":     "network",
		"priority": "LOW",
	})
	require.Equal(t, http.StatusOK, status)
	resp := decode[struct {
		Assignee *struct {
			ID string `json:"id"`
		} `json:"assignee"`
	}](t, env)
	require.NotNil(t, resp.Assignee)
	assert.Equal(t, h.requester.ID, resp.Assignee.ID)

	status, env = h.do(t, &h.supervisor, http.MethodPost, "/api/assignment-rules/resolve", map[string]any{
		"type":     "printer",
		"priority": "LOW",
	})
	require.Equal(t, http.StatusOK, status)
	resp = decode[struct {
		Assignee *struct {
			ID string `json:"id"`
		} `json:"assignee"`
	}](t, env)
	assert.Nil(t, resp.Assignee)
}

func TestManualScanRaisesAlertsOnce(t *testing.T) {
	h := newHarness(t)
	created := time.Now().UTC().Add(-3 * time.Hour)
	responseDue := created.Add(time.Hour)
	resolutionDue := created.Add(8 * time.Hour)
	ticket := h.store.AddTicket(domain.Ticket{
		Title: "VPN down", Type: "network", Priority: domain.TicketPriorityHigh,
		Status: domain.TicketStatusAssigned, RequesterID: h.requester.ID, AssigneeID: &h.agent.ID,
		CreatedAt: created,
		SLA: domain.TicketSLA{
			ResponseMinutes: 60, ResolutionMinutes: 480,
			ResponseDueAt: &responseDue, ResolutionDueAt: &resolutionDue,
		},
	})

	status, _ := h.do(t, &h.supervisor, http.MethodPost, "/api/sla/scan", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := h.do(t, &h.admin, http.MethodPost, "/api/sla/scan", nil)
	require.Equal(t, http.StatusOK, status)
	first := decode[service.ScanResult](t, env)
	assert.Equal(t, 1, first.Scanned)
	assert.Equal(t, 1, first.Alerts)

	status, env = h.do(t, &h.admin, http.MethodPost, "/api/sla/scan", nil)
	require.Equal(t, http.StatusOK, status)
	second := decode[service.ScanResult](t, env)
	assert.Equal(t, 0, second.Alerts)

	status, env = h.do(t, &h.supervisor, http.MethodGet, "/api/tickets/"+ticket.ID+"/alerts", nil)
	require.Equal(t, http.StatusOK, status)
	alerts := decode[[]struct {
		Kind string `json:"kind"`
	}](t, env)
	require.Len(t, alerts, 1)
	assert.Equal(t, string(domain.AlertSLAResponseBreached), alerts[0].Kind)

	status, env = h.do(t, &h.agent, http.MethodGet, "/api/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, status)
	inbox := decode[[]struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}](t, env)
	require.Len(t, inbox, 1)
	assert.Equal(t, "error", inbox[0].Kind)

	status, _ = h.do(t, &h.agent, http.MethodPost, "/api/notifications/"+inbox[0].ID+"/read", nil)
	require.Equal(t, http.StatusOK, status)
	_, env = h.do(t, &h.agent, http.MethodGet, "/api/notifications?unread=true", nil)
	assert.Empty(t, decode[[]struct{}](t, env))
}

func TestStatusTransitionConflict(t *testing.T) {
	h := newHarness(t)
	ticket := h.store.AddTicket(domain.Ticket{
		Title: "Printer", Type: "hardware", Priority: domain.TicketPriorityLow,
		Status: domain.TicketStatusCreated, RequesterID: h.requester.ID,
	})

	status, env := h.do(t, &h.admin, http.MethodPatch, "/api/tickets/"+ticket.ID+"/status", map[string]any{"status": "FINISHED"})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	status, env = h.do(t, &h.admin, http.MethodPatch, "/api/tickets/"+ticket.ID+"/status", map[string]any{"status": "STARTED"})
	require.Equal(t, http.StatusOK, status)
	view := decode[struct {
		Status          string     `json:"status"`
		FirstResponseAt *time.Time `json:"first_response_at"`
	}](t, env)
	assert.Equal(t, "STARTED", view.Status)
	assert.NotNil(t, view.FirstResponseAt)
}

func TestUsersCannotSeeOthersTickets(t *testing.T) {
	h := newHarness(t)
	ticket := h.store.AddTicket(domain.Ticket{
		Title: "Private", Type: "hr", Priority: domain.TicketPriorityLow,
		Status: domain.TicketStatusCreated, RequesterID: h.requester.ID,
	})

	status, _ := h.do(t, &h.agent, http.MethodGet, "/api/tickets/"+ticket.ID, nil)
	assert.Contains(t, []int{http.StatusForbidden, http.StatusNotFound}, status)

	status, env := h.do(t, &h.agent, http.MethodGet, "/api/tickets", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]struct{}](t, env))
}

func TestDirectoryEndpoints(t *testing.T) {
	h := newHarness(t)
	status, env := h.do(t, &h.admin, http.MethodPost, "/api/users", map[string]any{
		"name":          "Nia",
		"email":         "Nia@Example.com",
		"role":          "SUPERVISOR",
		"department_id": h.dept.ID,
	})
	require.Equal(t, http.StatusCreated, status)
	created := decode[struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}](t, env)
	assert.Equal(t, "nia@example.com", created.Email)
	assert.Equal(t, "SUPERVISOR", created.Role)

	status, env = h.do(t, &h.admin, http.MethodPost, "/api/users", map[string]any{
		"name":  "Nia again",
		"email": "nia@example.com",
	})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)

	status, _ = h.do(t, &h.supervisor, http.MethodPost, "/api/departments", map[string]any{"name": "Ops"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = h.do(t, &h.requester, http.MethodGet, "/api/users/me", nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[struct {
		ID string `json:"id"`
	}](t, env)
	assert.Equal(t, h.requester.ID, me.ID)
}
