package comments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/database"
)

// CommentRepository defines the data access contract for comments. Create
// and Delete issue two statements each and must run inside a transaction
// carried by ctx.
type CommentRepository interface {
	// Create inserts the comment and increments the brief's comment_count.
	Create(ctx context.Context, c *Comment) error

	// FindByID returns a comment scoped to its brief.
	FindByID(ctx context.Context, briefID, commentID string) (*Comment, error)

	// ListByBrief returns comments oldest first with author display fields.
	ListByBrief(ctx context.Context, briefID string, limit, offset int) ([]Comment, error)

	// Delete removes the comment and decrements the brief's comment_count.
	Delete(ctx context.Context, briefID, commentID string) error
}

type commentRepository struct {
	db *sql.DB
}

// NewCommentRepository creates a new comment repository backed by the given
// DB pool.
func NewCommentRepository(db *sql.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, c *Comment) error {
	q := database.QuerierFromCtx(ctx, r.db)

	_, err := q.ExecContext(ctx,
		`INSERT INTO comments (id, brief_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.BriefID, c.AuthorID, c.Content, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}

	result, err := q.ExecContext(ctx,
		`UPDATE briefs SET comment_count = comment_count + 1 WHERE id = ?`, c.BriefID)
	if err != nil {
		return fmt.Errorf("incrementing comment count: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperror.NewNotFound("brief not found")
	}
	return nil
}

func (r *commentRepository) FindByID(ctx context.Context, briefID, commentID string) (*Comment, error) {
	c := &Comment{}
	err := database.QuerierFromCtx(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, brief_id, author_id, content, created_at
		 FROM comments WHERE id = ? AND brief_id = ?`,
		commentID, briefID,
	).Scan(&c.ID, &c.BriefID, &c.AuthorID, &c.Content, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("comment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying comment: %w", err)
	}
	return c, nil
}

func (r *commentRepository) ListByBrief(ctx context.Context, briefID string, limit, offset int) ([]Comment, error) {
	query := `SELECT c.id, c.brief_id, c.author_id, c.content, c.created_at,
	                 COALESCE(u.display_name, ''), COALESCE(u.email, ''),
	                 CASE WHEN c.author_id = b.owner_id THEN 'owner' ELSE 'recipient' END
	          FROM comments c
	          JOIN briefs b ON b.id = c.brief_id
	          LEFT JOIN users u ON u.id = c.author_id
	          WHERE c.brief_id = ?
	          ORDER BY c.created_at ASC, c.id ASC
	          LIMIT ? OFFSET ?`

	rows, err := database.QuerierFromCtx(ctx, r.db).QueryContext(ctx, query, briefID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(
			&c.ID, &c.BriefID, &c.AuthorID, &c.Content, &c.CreatedAt,
			&c.AuthorName, &c.AuthorEmail, &c.AuthorRole,
		); err != nil {
			return nil, fmt.Errorf("scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *commentRepository) Delete(ctx context.Context, briefID, commentID string) error {
	q := database.QuerierFromCtx(ctx, r.db)

	result, err := q.ExecContext(ctx,
		`DELETE FROM comments WHERE id = ? AND brief_id = ?`, commentID, briefID)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("comment not found")
	}

	// GREATEST keeps a drifted counter from going negative on an unsigned
	// column.
	_, err = q.ExecContext(ctx,
		`UPDATE briefs SET comment_count = GREATEST(CAST(comment_count AS SIGNED) - 1, 0) WHERE id = ?`, briefID)
	if err != nil {
		return fmt.Errorf("decrementing comment count: %w", err)
	}
	return nil
}
