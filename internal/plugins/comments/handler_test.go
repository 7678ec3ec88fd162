package comments

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/plugins/auth"
	"github.com/keyxmakerx/briefly/internal/plugins/briefs"
)

func newCommentContext(method, body string, who briefs.Caller, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)

	auth.SetSession(c, &auth.Session{UserID: who.UserID, Email: who.Email, Name: who.Name})
	return c, rec
}

func TestHandler_CreateListDelete(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	c, rec := newCommentContext(http.MethodPost, `{"content":"Looks good"}`, client, "id", briefID)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Looks good", created.Content)

	c, rec = newCommentContext(http.MethodGet, "", owner, "id", briefID)
	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var page CommentPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	c, rec = newCommentContext(http.MethodDelete, "", client, "id", briefID, "cid", created.ID)
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandler_CreateRequiresSession(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(briefID)

	err := h.Create(c)
	assertAppError(t, err, apperror.TypeInternal)
}
