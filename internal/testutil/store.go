// Package testutil holds shared test doubles: an in-memory implementation of
// every repository interface and a Postgres testcontainer helper.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
)

// Store is an in-memory backing store shared by the fake repositories.
// Failures can be injected per operation with FailOn.
type Store struct {
	mu sync.Mutex

	tickets       []*domain.Ticket
	users         []*domain.User
	departments   []*domain.Department
	rules         []*domain.AssignmentRule
	alerts        []domain.Alert
	notifications []domain.Notification
	history       []domain.TicketHistory
	comments      []domain.TicketComment

	failures map[string]error
	calls    map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailOn makes the named operation (e.g. "tickets.Create") return err.
// A nil err clears the failure.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns how many times the named operation ran.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter records a call and returns any injected failure. Callers hold s.mu.
func (s *Store) enter(op string) error {
	s.calls[op]++
	return s.failures[op]
}

// AddUser seeds a user, keeping its ID when set.
func (s *Store) AddUser(user domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	s.users = append(s.users, &user)
	return user
}

// AddDepartment seeds a department, keeping its ID when set.
func (s *Store) AddDepartment(dept domain.Department) domain.Department {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	s.departments = append(s.departments, &dept)
	return dept
}

// AddTicket seeds a ticket, keeping its ID and timestamps when set.
func (s *Store) AddTicket(ticket domain.Ticket) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	s.tickets = append(s.tickets, &ticket)
	return ticket
}

// AddRule seeds an assignment rule, keeping its ID when set.
func (s *Store) AddRule(rule domain.AssignmentRule) domain.AssignmentRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	s.rules = append(s.rules, &rule)
	return rule
}

// Ticket returns a copy of the stored ticket, including soft-deleted ones.
func (s *Store) Ticket(id string) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.ID == id {
			return *t, true
		}
	}
	return domain.Ticket{}, false
}

// Alerts returns a copy of every stored alert.
func (s *Store) Alerts() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Alert(nil), s.alerts...)
}

// Notifications returns a copy of every stored notification.
func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.notifications...)
}

// History returns a copy of every stored history entry.
func (s *Store) History() []domain.TicketHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TicketHistory(nil), s.history...)
}

// Repositories bundles the fake repositories backed by s.
type Repositories struct {
	Tickets       repository.TicketRepository
	Users         repository.UserRepository
	Departments   repository.DepartmentRepository
	Rules         repository.AssignmentRuleRepository
	Alerts        repository.AlertRepository
	Notifications repository.NotificationRepository
	History       repository.TicketHistoryRepository
	Comments      repository.TicketCommentRepository
}

// Repositories returns fake repositories sharing this store.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Tickets:       ticketRepo{s},
		Users:         userRepo{s},
		Departments:   departmentRepo{s},
		Rules:         ruleRepo{s},
		Alerts:        alertRepo{s},
		Notifications: notificationRepo{s},
		History:       historyRepo{s},
		Comments:      commentRepo{s},
	}
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tickets.Create"); err != nil {
		return err
	}
	ticket.ID = uuid.NewString()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	r.s.tickets = append(r.s.tickets, &stored)
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tickets.Update"); err != nil {
		return err
	}
	stored := r.s.findTicket(ticket.ID)
	if stored == nil {
		return pgx.ErrNoRows
	}
	stored.Title = ticket.Title
	stored.Description = ticket.Description
	stored.Status = ticket.Status
	stored.DepartmentID = ticket.DepartmentID
	stored.AssigneeID = ticket.AssigneeID
	stored.AssignedAt = ticket.AssignedAt
	stored.FirstResponseAt = ticket.FirstResponseAt
	stored.ClosedAt = ticket.ClosedAt
	stored.UpdatedAt = time.Now().UTC()
	ticket.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tickets.GetByID"); err != nil {
		return nil, err
	}
	stored := r.s.findTicket(id)
	if stored == nil {
		return nil, pgx.ErrNoRows
	}
	out := *stored
	return &out, nil
}

func (r ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tickets.ListWithFilter"); err != nil {
		return nil, err
	}
	var result []domain.Ticket
	for _, t := range r.s.tickets {
		if t.DeletedAt == nil && ticketMatches(t, filter) {
			result = append(result, *t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(filter.Offset, 0)
	if offset >= len(result) {
		return nil, nil
	}
	end := min(offset+limit, len(result))
	return result[offset:end], nil
}

func ticketMatches(t *domain.Ticket, f repository.TicketFilter) bool {
	if f.RequesterID != nil && t.RequesterID != *f.RequesterID {
		return false
	}
	if f.AssigneeID != nil && !t.IsAssignedTo(*f.AssigneeID) {
		return false
	}
	if f.DepartmentID != nil && (t.DepartmentID == nil || *t.DepartmentID != *f.DepartmentID) {
		return false
	}
	if f.VisibleTo != nil && t.RequesterID != *f.VisibleTo && !t.IsAssignedTo(*f.VisibleTo) {
		return false
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" && !strings.Contains(strings.ToLower(t.Title), term) && !strings.Contains(strings.ToLower(t.Code), term) {
			return false
		}
	}
	return true
}

func (r ticketRepo) ListOpen(_ context.Context) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tickets.ListOpen"); err != nil {
		return nil, err
	}
	var result []domain.Ticket
	for _, t := range r.s.tickets {
		if t.IsOpen() {
			result = append(result, *t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r ticketRepo) CountOpenByAssignee(_ context.Context, userIDs []string) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tickets.CountOpenByAssignee"); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, t := range r.s.tickets {
		if !t.IsOpen() || t.AssigneeID == nil || !contains(userIDs, *t.AssigneeID) {
			continue
		}
		counts[*t.AssigneeID]++
	}
	return counts, nil
}

func (r ticketRepo) MarkBreached(_ context.Context, ticketID string, dimension domain.SLADimension, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tickets.MarkBreached"); err != nil {
		return err
	}
	stored := r.s.findTicket(ticketID)
	if stored == nil {
		return nil
	}
	stamp := at
	switch dimension {
	case domain.SLADimensionResponse:
		if stored.SLA.ResponseBreachedAt == nil {
			stored.SLA.ResponseBreachedAt = &stamp
		}
	case domain.SLADimensionResolution:
		if stored.SLA.ResolutionBreachedAt == nil {
			stored.SLA.ResolutionBreachedAt = &stamp
		}
	}
	return nil
}

func (r ticketRepo) SoftDelete(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tickets.SoftDelete"); err != nil {
		return err
	}
	stored := r.s.findTicket(id)
	if stored == nil {
		return pgx.ErrNoRows
	}
	deletedAt := at
	stored.DeletedAt = &deletedAt
	return nil
}

// findTicket returns the live (not deleted) ticket. Callers hold s.mu.
func (s *Store) findTicket(id string) *domain.Ticket {
	for _, t := range s.tickets {
		if t.ID == id && t.DeletedAt == nil {
			return t
		}
	}
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.Create"); err != nil {
		return err
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.s.users = append(r.s.users, &stored)
	return nil
}

func (r userRepo) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.Update"); err != nil {
		return err
	}
	for _, u := range r.s.users {
		if u.ID == user.ID {
			user.UpdatedAt = time.Now().UTC()
			*u = *user
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.GetByID"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.ID == id {
			out := *u
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r userRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.List"); err != nil {
		return nil, err
	}
	var result []domain.User
	for _, u := range r.s.users {
		if len(filter.Roles) > 0 && !contains(filter.Roles, u.Role) {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		if filter.DepartmentID != nil && (u.DepartmentID == nil || *u.DepartmentID != *filter.DepartmentID) {
			continue
		}
		result = append(result, *u)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if filter.Limit > 0 {
		offset := max(filter.Offset, 0)
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:min(offset+filter.Limit, len(result))]
	}
	return result, nil
}

type departmentRepo struct{ s *Store }

func (r departmentRepo) Create(_ context.Context, dept *domain.Department) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("departments.Create"); err != nil {
		return err
	}
	dept.ID = uuid.NewString()
	dept.CreatedAt = time.Now().UTC()
	dept.UpdatedAt = dept.CreatedAt
	stored := *dept
	r.s.departments = append(r.s.departments, &stored)
	return nil
}

func (r departmentRepo) Update(_ context.Context, dept *domain.Department) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("departments.Update"); err != nil {
		return err
	}
	for _, d := range r.s.departments {
		if d.ID == dept.ID {
			dept.UpdatedAt = time.Now().UTC()
			*d = *dept
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r departmentRepo) GetByID(_ context.Context, id string) (*domain.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("departments.GetByID"); err != nil {
		return nil, err
	}
	for _, d := range r.s.departments {
		if d.ID == id {
			out := *d
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r departmentRepo) List(_ context.Context, includeInactive bool) ([]domain.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("departments.List"); err != nil {
		return nil, err
	}
	var result []domain.Department
	for _, d := range r.s.departments {
		if includeInactive || d.IsActive {
			result = append(result, *d)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type ruleRepo struct{ s *Store }

func (r ruleRepo) Create(_ context.Context, rule *domain.AssignmentRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("rules.Create"); err != nil {
		return err
	}
	rule.ID = uuid.NewString()
	rule.CreatedAt = time.Now().UTC()
	rule.UpdatedAt = rule.CreatedAt
	stored := *rule
	r.s.rules = append(r.s.rules, &stored)
	return nil
}

func (r ruleRepo) Update(_ context.Context, rule *domain.AssignmentRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("rules.Update"); err != nil {
		return err
	}
	for _, existing := range r.s.rules {
		if existing.ID == rule.ID {
			rule.CreatedAt = existing.CreatedAt
			rule.UpdatedAt = time.Now().UTC()
			*existing = *rule
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r ruleRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("rules.Delete"); err != nil {
		return err
	}
	for i, existing := range r.s.rules {
		if existing.ID == id {
			r.s.rules = append(r.s.rules[:i], r.s.rules[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r ruleRepo) GetByID(_ context.Context, id string) (*domain.AssignmentRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("rules.GetByID"); err != nil {
		return nil, err
	}
	for _, existing := range r.s.rules {
		if existing.ID == id {
			out := *existing
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r ruleRepo) List(_ context.Context, activeOnly bool) ([]domain.AssignmentRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("rules.List"); err != nil {
		return nil, err
	}
	var result []domain.AssignmentRule
	for _, rule := range r.s.rules {
		if !activeOnly || rule.Active {
			result = append(result, *rule)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Orden != result[j].Orden {
			return result[i].Orden < result[j].Orden
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type alertRepo struct{ s *Store }

func (r alertRepo) ListKeysForTickets(_ context.Context, ticketIDs []string) ([]domain.AlertKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("alerts.ListKeysForTickets"); err != nil {
		return nil, err
	}
	var keys []domain.AlertKey
	for _, alert := range r.s.alerts {
		if contains(ticketIDs, alert.TicketID) {
			keys = append(keys, alert.Key())
		}
	}
	return keys, nil
}

// InsertWithNotifications fails as a whole when either "alerts.InsertWithNotifications"
// or "notifications.CreateBatch" is set to fail, leaving nothing stored.
func (r alertRepo) InsertWithNotifications(_ context.Context, alerts []domain.Alert, build func(inserted []domain.Alert) []domain.Notification) ([]domain.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(alerts) == 0 {
		return nil, nil
	}
	if err := r.s.enter("alerts.InsertWithNotifications"); err != nil {
		return nil, err
	}
	existing := make(map[domain.AlertKey]struct{}, len(r.s.alerts))
	for _, alert := range r.s.alerts {
		existing[alert.Key()] = struct{}{}
	}
	var inserted []domain.Alert
	for _, alert := range alerts {
		if _, ok := existing[alert.Key()]; ok {
			continue
		}
		alert.ID = uuid.NewString()
		existing[alert.Key()] = struct{}{}
		inserted = append(inserted, alert)
	}
	var notifications []domain.Notification
	if build != nil && len(inserted) > 0 {
		notifications = build(inserted)
		if len(notifications) > 0 {
			if err := r.s.enter("notifications.CreateBatch"); err != nil {
				return nil, fmt.Errorf("insert alert notifications: %w", err)
			}
		}
	}
	r.s.alerts = append(r.s.alerts, inserted...)
	r.s.appendNotifications(notifications)
	return inserted, nil
}

func (r alertRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("alerts.ListByTicket"); err != nil {
		return nil, err
	}
	var result []domain.Alert
	for _, alert := range r.s.alerts {
		if alert.TicketID == ticketID {
			result = append(result, alert)
		}
	}
	return result, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("notifications.Create"); err != nil {
		return err
	}
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r notificationRepo) CreateBatch(_ context.Context, notifications []domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("notifications.CreateBatch"); err != nil {
		return err
	}
	r.s.appendNotifications(notifications)
	return nil
}

// appendNotifications stores a batch. Callers hold s.mu.
func (s *Store) appendNotifications(notifications []domain.Notification) {
	for _, n := range notifications {
		n.ID = uuid.NewString()
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		s.notifications = append(s.notifications, n)
	}
}

func (r notificationRepo) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("notifications.ListByRecipient"); err != nil {
		return nil, err
	}
	var result []domain.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		n := r.s.notifications[i]
		if n.RecipientID != recipientID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		result = append(result, n)
	}
	if limit <= 0 {
		limit = 20
	}
	offset = max(offset, 0)
	if offset >= len(result) {
		return nil, nil
	}
	return result[offset:min(offset+limit, len(result))], nil
}

func (r notificationRepo) MarkRead(_ context.Context, id, recipientID string, at time.Time) (*domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("notifications.MarkRead"); err != nil {
		return nil, err
	}
	for i := range r.s.notifications {
		n := &r.s.notifications[i]
		if n.ID != id || n.RecipientID != recipientID {
			continue
		}
		if n.ReadAt == nil {
			readAt := at
			n.ReadAt = &readAt
		}
		out := *n
		return &out, nil
	}
	return nil, pgx.ErrNoRows
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("history.Create"); err != nil {
		return err
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	r.s.history = append(r.s.history, *entry)
	return nil
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("history.ListByTicket"); err != nil {
		return nil, err
	}
	var result []domain.TicketHistory
	for _, entry := range r.s.history {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("comments.Create"); err != nil {
		return err
	}
	comment.ID = uuid.NewString()
	comment.CreatedAt = time.Now().UTC()
	r.s.comments = append(r.s.comments, *comment)
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketComment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("comments.ListByTicket"); err != nil {
		return nil, err
	}
	var result []domain.TicketComment
	for _, c := range r.s.comments {
		if c.TicketID == ticketID {
			result = append(result, c)
		}
	}
	if limit <= 0 {
		limit = 50
	}
	offset = max(offset, 0)
	if offset >= len(result) {
		return nil, nil
	}
	return result[offset:min(offset+limit, len(result))], nil
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
