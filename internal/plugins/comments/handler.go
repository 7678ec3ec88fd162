package comments

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/plugins/briefs"
)

// Handler handles HTTP requests for brief comments. Handlers are thin: bind
// request, call service, render response.
type Handler struct {
	service CommentService
}

// NewHandler creates a new comment handler.
func NewHandler(service CommentService) *Handler {
	return &Handler{service: service}
}

// List returns a page of comments (GET /api/v1/briefs/:id/comments).
func (h *Handler) List(c echo.Context) error {
	caller, err := briefs.CallerFromContext(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))

	result, err := h.service.ListByBrief(c.Request().Context(), c.Param("id"), caller, page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Create adds a comment (POST /api/v1/briefs/:id/comments).
func (h *Handler) Create(c echo.Context) error {
	caller, err := briefs.CallerFromContext(c)
	if err != nil {
		return err
	}

	var req CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	comment, err := h.service.Create(c.Request().Context(), c.Param("id"), caller, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

// Delete removes the caller's own comment
// (DELETE /api/v1/briefs/:id/comments/:cid).
func (h *Handler) Delete(c echo.Context) error {
	caller, err := briefs.CallerFromContext(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), c.Param("id"), c.Param("cid"), caller); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
