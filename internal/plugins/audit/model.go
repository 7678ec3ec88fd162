// Package audit records who changed what on a brief and when. Every
// significant mutation (brief CRUD, status changes, sharing, comments) is
// captured as an Entry with before/after snapshots and persisted to the
// audit_log table.
//
// Recording is best effort: writes happen off the request path and a failed
// write is logged, never surfaced to the caller.
package audit

import "time"

// --- Action Constants ---
// Each action string follows the pattern "resource.verb" for consistent
// filtering and display grouping.

const (
	// ActionBriefCreated is logged when a creator drafts a new brief.
	ActionBriefCreated = "brief.created"

	// ActionBriefUpdated is logged when header, content, or footer change.
	ActionBriefUpdated = "brief.updated"

	// ActionBriefDeleted is logged just before a brief is removed.
	ActionBriefDeleted = "brief.deleted"

	// ActionBriefStatusChanged is logged for every status transition.
	ActionBriefStatusChanged = "brief.status_changed"

	// ActionRecipientShared is logged when a brief is shared with an email.
	ActionRecipientShared = "recipient.shared"

	// ActionRecipientRevoked is logged when a recipient loses access.
	ActionRecipientRevoked = "recipient.revoked"

	// ActionCommentCreated is logged when a comment is appended.
	ActionCommentCreated = "comment.created"

	// ActionCommentDeleted is logged just before a comment is removed.
	ActionCommentDeleted = "comment.deleted"
)

// Entity types stored in audit_log.entity_type.
const (
	EntityBrief     = "brief"
	EntityRecipient = "recipient"
	EntityComment   = "comment"
)

// Entry represents a single recorded action in the audit log. OldData and
// NewData hold JSON snapshots of the affected record; either may be nil
// (nothing before a create, nothing after a delete).
type Entry struct {
	ID         int64          `json:"id"`
	UserID     *string        `json:"user_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	OldData    map[string]any `json:"old_data,omitempty"`
	NewData    map[string]any `json:"new_data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`

	// UserName is joined from the users table for display. Not stored in
	// audit_log -- populated at query time.
	UserName string `json:"user_name,omitempty"`
}

// HistoryPage is the paginated response for the brief history endpoint.
type HistoryPage struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
}

// UserRef returns a pointer to id, or nil for an empty id. System-initiated
// actions have no user.
func UserRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
