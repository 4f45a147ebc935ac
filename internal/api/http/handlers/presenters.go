package handlers

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/service"
	"github.com/deskflow/helpdesk-service/internal/sla"
)

func ticketResponse(view *service.TicketView) dto.TicketResponse {
	t := view.Ticket
	return dto.TicketResponse{
		ID:              t.ID,
		Code:            t.Code,
		Title:           t.Title,
		Description:     t.Description,
		Type:            t.Type,
		Priority:        t.Priority,
		Status:          t.Status,
		RequesterID:     t.RequesterID,
		DepartmentID:    t.DepartmentID,
		AssigneeID:      t.AssigneeID,
		AssignedAt:      t.AssignedAt,
		FirstResponseAt: t.FirstResponseAt,
		ClosedAt:        t.ClosedAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		SLA: dto.SLAResponse{
			Overall:    string(view.SLA.Overall),
			Response:   slaDimension(view.SLA.Response, t.SLA.ResponseBreachedAt),
			Resolution: slaDimension(view.SLA.Resolution, t.SLA.ResolutionBreachedAt),
		},
	}
}

func slaDimension(d sla.DimensionStatus, breachedAt *time.Time) dto.SLADimensionResponse {
	return dto.SLADimensionResponse{
		State:            string(d.State),
		BudgetMinutes:    d.BudgetMinutes,
		DueAt:            d.DueAt,
		RemainingMinutes: d.RemainingMinutes,
		BreachedAt:       breachedAt,
	}
}

func ticketResponses(views []service.TicketView) []dto.TicketResponse {
	out := make([]dto.TicketResponse, 0, len(views))
	for i := range views {
		out = append(out, ticketResponse(&views[i]))
	}
	return out
}

func commentResponse(comment *domain.TicketComment) dto.TicketCommentResponse {
	return dto.TicketCommentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		AuthorID:  comment.AuthorID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}

func alertResponses(alerts []domain.Alert) []dto.AlertResponse {
	resp := make([]dto.AlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		resp = append(resp, dto.AlertResponse{
			ID:       alert.ID,
			TicketID: alert.TicketID,
			Kind:     alert.Kind,
			SentAt:   alert.SentAt,
		})
	}
	return resp
}

func ruleResponse(rule *domain.AssignmentRule) dto.AssignmentRuleResponse {
	resp := dto.AssignmentRuleResponse{
		ID:         rule.ID,
		Name:       rule.Name,
		Orden:      rule.Orden,
		Active:     rule.Active,
		TicketType: rule.TicketType,
		Priority:   rule.Priority,
		CreatedAt:  rule.CreatedAt,
		UpdatedAt:  rule.UpdatedAt,
	}
	switch target := rule.Target.(type) {
	case domain.SpecificUserTarget:
		userID := target.UserID
		resp.Target = dto.AssignmentTargetDTO{Kind: "user", UserID: &userID}
	case domain.RolePoolTarget:
		role := target.EffectiveRole()
		resp.Target = dto.AssignmentTargetDTO{Kind: "role", Role: &role, MaxActive: target.MaxActive}
	}
	return resp
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:            n.ID,
		Kind:          n.Kind,
		Title:         n.Title,
		Message:       n.Message,
		ReferenceType: n.ReferenceType,
		ReferenceID:   n.ReferenceID,
		CreatedAt:     n.CreatedAt,
		ReadAt:        n.ReadAt,
	}
}

func departmentResponse(d *domain.Department) dto.DepartmentResponse {
	return dto.DepartmentResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Active:      d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		DepartmentID: u.DepartmentID,
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
	}
}
