// Package comments is the append-only comment ledger attached to briefs.
// Comments are never edited; an author may delete their own. The brief's
// comment_count column is maintained in the same transaction as every
// insert and delete.
package comments

import "time"

const (
	defaultPerPage = 50
	maxPerPage     = 100
)

// Comment is a message left on a brief by its owner or a recipient.
type Comment struct {
	ID        string    `json:"id"`
	BriefID   string    `json:"brief_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Display fields joined from users and briefs. Not stored on the
	// comment row.
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	AuthorRole  string `json:"author_role"`
}

func (c *Comment) snapshot() map[string]any {
	return map[string]any{
		"brief_id":  c.BriefID,
		"author_id": c.AuthorID,
		"content":   c.Content,
	}
}

// CommentPage is a page of comments. Total comes from the brief's
// denormalized counter.
type CommentPage struct {
	Comments []Comment `json:"comments"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
}

// CreateCommentRequest is the JSON body for POST
// /api/v1/briefs/:id/comments.
type CreateCommentRequest struct {
	Content string `json:"content"`
}
