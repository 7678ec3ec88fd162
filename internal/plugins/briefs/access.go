package briefs

import (
	"context"

	"github.com/keyxmakerx/briefly/internal/apperror"
)

// AccessResolver computes a caller's role on a brief and enforces it. Every
// brief-scoped operation goes through one of the Require methods.
//
// Callers with no access always get NotFound, never Forbidden, so they
// cannot learn whether a brief exists.
type AccessResolver interface {
	// Resolve returns the brief and the caller's role on it. A missing
	// brief is NotFound.
	Resolve(ctx context.Context, briefID string, caller Caller) (*Brief, Role, error)

	// RequireOwner allows the owner only. Recipients get Forbidden.
	RequireOwner(ctx context.Context, briefID string, caller Caller) (*Brief, error)

	// RequireAnyAccess allows the owner and recipients.
	RequireAnyAccess(ctx context.Context, briefID string, caller Caller) (*Brief, Role, error)

	// RequireRecipientOnly allows recipients only. The owner gets Forbidden.
	RequireRecipientOnly(ctx context.Context, briefID string, caller Caller) (*Brief, error)
}

type accessResolver struct {
	briefs     BriefRepository
	recipients RecipientRepository
}

// NewAccessResolver creates a resolver over the brief and recipient stores.
func NewAccessResolver(briefs BriefRepository, recipients RecipientRepository) AccessResolver {
	return &accessResolver{briefs: briefs, recipients: recipients}
}

func (a *accessResolver) Resolve(ctx context.Context, briefID string, caller Caller) (*Brief, Role, error) {
	if briefID == "" {
		return nil, RoleNoAccess, apperror.NewBadRequest("brief ID is required")
	}

	brief, err := a.briefs.FindByID(ctx, briefID)
	if err != nil {
		return nil, RoleNoAccess, err
	}

	if caller.UserID == "" {
		return brief, RoleNoAccess, nil
	}
	if brief.OwnerID == caller.UserID {
		return brief, RoleOwner, nil
	}

	ok, err := a.recipients.IsRecipient(ctx, briefID, caller.UserID, caller.Email)
	if err != nil {
		return nil, RoleNoAccess, apperror.NewInternal(err)
	}
	if ok {
		return brief, RoleRecipient, nil
	}
	return brief, RoleNoAccess, nil
}

func (a *accessResolver) RequireOwner(ctx context.Context, briefID string, caller Caller) (*Brief, error) {
	brief, role, err := a.Resolve(ctx, briefID, caller)
	if err != nil {
		return nil, err
	}
	switch role {
	case RoleOwner:
		return brief, nil
	case RoleRecipient:
		return nil, apperror.NewForbidden("only the brief owner can do this")
	default:
		return nil, errBriefNotFound()
	}
}

func (a *accessResolver) RequireAnyAccess(ctx context.Context, briefID string, caller Caller) (*Brief, Role, error) {
	brief, role, err := a.Resolve(ctx, briefID, caller)
	if err != nil {
		return nil, RoleNoAccess, err
	}
	if role == RoleNoAccess {
		return nil, RoleNoAccess, errBriefNotFound()
	}
	return brief, role, nil
}

func (a *accessResolver) RequireRecipientOnly(ctx context.Context, briefID string, caller Caller) (*Brief, error) {
	brief, role, err := a.Resolve(ctx, briefID, caller)
	if err != nil {
		return nil, err
	}
	switch role {
	case RoleRecipient:
		return brief, nil
	case RoleOwner:
		return nil, apperror.NewForbidden("the brief owner cannot act as a recipient")
	default:
		return nil, errBriefNotFound()
	}
}

func errBriefNotFound() error {
	return apperror.NewNotFound("brief not found")
}
