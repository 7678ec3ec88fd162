package briefs

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/plugins/auth"
)

// contextKeyBrief is the Echo context key for the brief resolved by
// RequireBriefOwner.
const contextKeyBrief = "brief"

// CallerFromContext builds a Caller from the authenticated session.
// Must be called AFTER auth.RequireAuth.
func CallerFromContext(c echo.Context) (Caller, error) {
	session := auth.GetSession(c)
	if session == nil {
		return Caller{}, apperror.NewMissingContext()
	}
	return Caller{
		UserID: session.UserID,
		Email:  session.Email,
		Name:   session.Name,
	}, nil
}

// RequireBriefOwner returns middleware that resolves the brief from the :id
// URL parameter and allows only its owner through. Other plugins with
// brief-scoped owner routes (audit history) use this so they do not need to
// import the access rules.
//
// Must be applied AFTER auth.RequireAuth.
func RequireBriefOwner(resolver AccessResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, err := CallerFromContext(c)
			if err != nil {
				return err
			}

			brief, err := resolver.RequireOwner(c.Request().Context(), c.Param("id"), caller)
			if err != nil {
				return err
			}

			c.Set(contextKeyBrief, brief)
			return next(c)
		}
	}
}

// GetBrief returns the brief resolved by RequireBriefOwner, or nil.
func GetBrief(c echo.Context) *Brief {
	brief, ok := c.Get(contextKeyBrief).(*Brief)
	if !ok {
		return nil
	}
	return brief
}
