package briefs

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/briefly/internal/apperror"
)

// Handler handles HTTP requests for briefs, their recipients and decisions.
// Handlers are thin: bind request, call service, render response.
type Handler struct {
	service   BriefService
	directory RecipientDirectory
	engine    StatusEngine
}

// NewHandler creates a new brief handler.
func NewHandler(service BriefService, directory RecipientDirectory, engine StatusEngine) *Handler {
	return &Handler{service: service, directory: directory, engine: engine}
}

// ListOwned returns the caller's own briefs (GET /api/v1/briefs).
func (h *Handler) ListOwned(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	page, err := h.service.ListOwned(c.Request().Context(), caller, listOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// ListShared returns briefs shared with the caller
// (GET /api/v1/briefs/shared).
func (h *Handler) ListShared(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	page, err := h.service.ListShared(c.Request().Context(), caller, listOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// Quota reports the caller's brief count against the limit
// (GET /api/v1/briefs/quota).
func (h *Handler) Quota(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	quota, err := h.service.Quota(c.Request().Context(), caller.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quota)
}

// Create stores a new draft brief (POST /api/v1/briefs).
func (h *Handler) Create(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	var req CreateBriefRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	brief, err := h.service.Create(c.Request().Context(), caller, CreateBriefInput{
		Header:  req.Header,
		Content: req.Content,
		Footer:  req.Footer,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, brief)
}

// Get returns a brief with the caller's role (GET /api/v1/briefs/:id).
func (h *Handler) Get(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	view, err := h.service.Get(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Update edits brief content (PATCH /api/v1/briefs/:id).
func (h *Handler) Update(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	var req UpdateBriefRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	brief, err := h.service.UpdateContent(c.Request().Context(), c.Param("id"), caller, UpdateContentInput{
		Header:  req.Header,
		Content: req.Content,
		Footer:  req.Footer,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, brief)
}

// Delete removes a brief (DELETE /api/v1/briefs/:id).
func (h *Handler) Delete(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), c.Param("id"), caller); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListRecipients returns the recipient list
// (GET /api/v1/briefs/:id/recipients).
func (h *Handler) ListRecipients(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	recipients, err := h.directory.ListRecipients(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recipients)
}

// Share adds a recipient (POST /api/v1/briefs/:id/recipients).
func (h *Handler) Share(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	var req ShareRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	rec, err := h.directory.Share(c.Request().Context(), c.Param("id"), caller, req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

// Revoke removes a recipient (DELETE /api/v1/briefs/:id/recipients/:rid).
func (h *Handler) Revoke(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	if err := h.directory.Revoke(c.Request().Context(), c.Param("id"), c.Param("rid"), caller); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Decide records a recipient's decision (POST /api/v1/briefs/:id/decision).
func (h *Handler) Decide(c echo.Context) error {
	caller, err := CallerFromContext(c)
	if err != nil {
		return err
	}

	var req DecisionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	brief, err := h.engine.Decide(c.Request().Context(), c.Param("id"), caller, DecisionInput{
		Decision: Status(req.Decision),
		Comment:  req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, brief)
}

// listOptions reads page and per_page query parameters. Invalid values are
// clamped by the service.
func listOptions(c echo.Context) ListOptions {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	return ListOptions{Page: page, PerPage: perPage}
}
