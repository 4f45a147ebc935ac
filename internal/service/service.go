package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// Clock returns the current time. Services default to UTC wall time.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func requireActor(actor *domain.User) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authenticated user required")
	}
	return nil
}

func requireSupervisor(actor *domain.User) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.Role.IsSupervisor() {
		return apperrors.NewForbidden("supervisor or admin role required")
	}
	return nil
}

func requireAdmin(actor *domain.User) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.Role != domain.UserRoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// lookupError turns a missing row into NOT_FOUND for resource and wraps
// anything else.
func lookupError(err error, resource, idKey, id string) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound(resource, map[string]any{idKey: id})
	}
	return fmt.Errorf("load %s: %w", resource, err)
}

func stringPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func ptrBool(v bool) *bool {
	return &v
}
