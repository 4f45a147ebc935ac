package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/service"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// Scanner runs one SLA alert scan.
type Scanner interface {
	ScanOnce(ctx context.Context) (service.ScanResult, error)
}

// SLAHandler exposes manual SLA scans.
type SLAHandler struct {
	scanner Scanner
}

// NewSLAHandler constructs handler.
func NewSLAHandler(scanner Scanner) *SLAHandler {
	return &SLAHandler{scanner: scanner}
}

// Scan POST /sla/scan runs the alert engine immediately.
func (h *SLAHandler) Scan(c *fiber.Ctx) error {
	result, err := h.scanner.ScanOnce(c.UserContext())
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.ScanResponse{Scanned: result.Scanned, Alerts: result.Alerts}})
}
