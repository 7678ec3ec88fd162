package briefs

import (
	"context"

	"github.com/keyxmakerx/briefly/internal/plugins/auth"
)

// AccountUser is the minimal view of a registered account the briefs plugin
// needs when sharing.
type AccountUser struct {
	ID          string
	Email       string
	DisplayName string
}

// UserFinder looks up registered accounts by email. Returns
// apperror.NotFound when the email has no account.
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*AccountUser, error)
}

// UserFinderAdapter wraps auth.UserRepository to satisfy UserFinder. Only
// this file and the route wiring reference the auth package's storage.
type UserFinderAdapter struct {
	repo auth.UserRepository
}

// NewUserFinderAdapter creates a new adapter around the auth repository.
func NewUserFinderAdapter(repo auth.UserRepository) UserFinder {
	return &UserFinderAdapter{repo: repo}
}

// FindUserByEmail looks up a user by email and maps to AccountUser.
func (a *UserFinderAdapter) FindUserByEmail(ctx context.Context, email string) (*AccountUser, error) {
	user, err := a.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &AccountUser{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, nil
}
