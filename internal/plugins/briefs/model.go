// Package briefs owns the brief lifecycle: who may see a brief, who it is
// shared with, and how its status moves between draft, sent and the
// recipient decisions.
//
// This is a CORE plugin. Comments and audit history hang off the brief IDs
// it manages.
package briefs

import (
	"encoding/json"
	"time"
)

// --- Status ---

// Status is the lifecycle state of a brief.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusSent              Status = "sent"
	StatusAccepted          Status = "accepted"
	StatusRejected          Status = "rejected"
	StatusNeedsModification Status = "needs_modification"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusNeedsModification:
		return true
	}
	return false
}

// IsDecision reports whether s is one of the statuses a recipient can
// choose when deciding on a sent brief.
func (s Status) IsDecision() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusNeedsModification
}

// --- Access ---

// Role is a caller's relationship to a specific brief. It is computed per
// request and never stored.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleRecipient Role = "recipient"
	RoleNoAccess  Role = "none"
)

// Caller identifies the authenticated user acting on a brief. Email is the
// normalized account email and is used to match pending recipients.
type Caller struct {
	UserID string
	Email  string
	Name   string
}

// --- Limits ---

const (
	MaxHeaderLength  = 200
	MaxFooterLength  = 5000
	MaxCommentLength = 1000

	defaultPerPage = 20
	maxPerPage     = 100
)

// --- Brief ---

// Brief is a structured document created by a creator and shared with
// clients for a decision.
type Brief struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"owner_id"`
	Header          string          `json:"header"`
	Content         json.RawMessage `json:"content"`
	Footer          *string         `json:"footer,omitempty"`
	Status          Status          `json:"status"`
	StatusChangedAt *time.Time      `json:"status_changed_at,omitempty"`
	StatusChangedBy *string         `json:"status_changed_by,omitempty"`
	CommentCount    int             `json:"comment_count"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// BriefView is a brief as seen by a particular caller.
type BriefView struct {
	*Brief
	Role Role `json:"role"`
}

// snapshot returns the fields recorded in audit entries for a brief.
func (b *Brief) snapshot() map[string]any {
	data := map[string]any{
		"header": b.Header,
		"status": string(b.Status),
	}
	if b.Footer != nil {
		data["footer"] = *b.Footer
	}
	return data
}

// --- Recipients ---

// Recipient is an entry in a brief's recipient list. UserID is nil while the
// email has no registered account (a pending recipient).
type Recipient struct {
	ID       string    `json:"id"`
	BriefID  string    `json:"brief_id"`
	UserID   *string   `json:"recipient_user_id"`
	Email    string    `json:"email"`
	SharedBy string    `json:"shared_by"`
	SharedAt time.Time `json:"shared_at"`
}

// IsPending reports whether the recipient has not yet been bound to a user.
func (r *Recipient) IsPending() bool {
	return r.UserID == nil
}

func (r *Recipient) snapshot() map[string]any {
	data := map[string]any{
		"brief_id": r.BriefID,
		"email":    r.Email,
		"pending":  r.IsPending(),
	}
	if r.UserID != nil {
		data["recipient_user_id"] = *r.UserID
	}
	return data
}

// --- Quota ---

// Quota reports how many briefs an owner has against the configured limit.
type Quota struct {
	Count     int  `json:"count"`
	Limit     int  `json:"limit"`
	WarnAt    int  `json:"warn_at"`
	NearLimit bool `json:"near_limit"`
	AtLimit   bool `json:"at_limit"`
}

// --- Pagination ---

// ListOptions holds pagination parameters for brief listings.
type ListOptions struct {
	Page    int
	PerPage int
}

// normalize clamps page and page size to sane values.
func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = defaultPerPage
	}
	if o.PerPage > maxPerPage {
		o.PerPage = maxPerPage
	}
	return o
}

// Offset returns the row offset for the current page.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.PerPage
}

// ListPage is a page of briefs with the total count.
type ListPage struct {
	Briefs  []Brief `json:"briefs"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
}

// --- Request DTOs (bound from HTTP requests) ---

// CreateBriefRequest is the JSON body for POST /api/v1/briefs.
type CreateBriefRequest struct {
	Header  string          `json:"header"`
	Content json.RawMessage `json:"content"`
	Footer  *string         `json:"footer"`
}

// UpdateBriefRequest is the JSON body for PATCH /api/v1/briefs/:id. Absent
// fields are left unchanged; an empty footer clears it.
type UpdateBriefRequest struct {
	Header  *string         `json:"header"`
	Content json.RawMessage `json:"content"`
	Footer  *string         `json:"footer"`
}

// ShareRequest is the JSON body for POST /api/v1/briefs/:id/recipients.
type ShareRequest struct {
	Email string `json:"email"`
}

// DecisionRequest is the JSON body for POST /api/v1/briefs/:id/decision.
type DecisionRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

// --- Service inputs ---

// CreateBriefInput is the validated input for creating a brief.
type CreateBriefInput struct {
	Header  string
	Content json.RawMessage
	Footer  *string
}

// UpdateContentInput carries the fields to change. A nil field is left as
// is.
type UpdateContentInput struct {
	Header  *string
	Content json.RawMessage
	Footer  *string
}

// empty reports whether no field was supplied.
func (in UpdateContentInput) empty() bool {
	return in.Header == nil && in.Content == nil && in.Footer == nil
}

// DecisionInput is a recipient's decision on a sent brief. Comment is
// required for needs_modification and optional otherwise; a non-blank
// comment is stored with the decision.
type DecisionInput struct {
	Decision Status
	Comment  string
}
