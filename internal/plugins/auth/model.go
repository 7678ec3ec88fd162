// Package auth handles user accounts, password security, and session
// management for Briefly. Sessions are opaque random tokens stored in Redis
// and accepted either as a cookie or as a Bearer token.
//
// This is a CORE plugin -- every other plugin sits behind RequireAuth.
package auth

import (
	"time"
)

// Role is the account-level role chosen at registration. Creators author
// briefs; clients receive them. Access to an individual brief is decided
// per brief, not by this role.
type Role string

const (
	RoleCreator Role = "creator"
	RoleClient  Role = "client"
)

// IsValid reports whether r is a known account role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCreator, RoleClient:
		return true
	}
	return false
}

// User represents a registered account.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"` // Never expose in JSON responses.
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the registration payload.
type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

// LoginRequest holds the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// --- Service Input DTOs (passed from handler to service) ---

// RegisterInput is the input for creating a new user.
type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
	Role        Role
}

// LoginInput is the input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// --- Session ---

// Session represents an authenticated user session stored in Redis.
// The session token is the key suffix, and this struct is the value
// (JSON-encoded).
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
