package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for audit log operations. Handlers are thin:
// bind request, call service, render response.
type Handler struct {
	service AuditService
}

// NewHandler creates a new audit handler.
func NewHandler(service AuditService) *Handler {
	return &Handler{service: service}
}

// BriefHistory returns the change history of a brief as JSON
// (GET /api/v1/briefs/:id/history). Restricted to the brief owner via
// route middleware.
func (h *Handler) BriefHistory(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))

	history, err := h.service.BriefHistory(c.Request().Context(), c.Param("id"), page)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, history)
}
