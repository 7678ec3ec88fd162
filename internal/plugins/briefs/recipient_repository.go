package briefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/database"
)

// RecipientRepository defines the data access contract for brief recipients.
type RecipientRepository interface {
	// Create inserts a recipient. Returns apperror.Conflict if the email is
	// already on the brief.
	Create(ctx context.Context, rec *Recipient) error

	// FindByID returns a recipient of the given brief.
	FindByID(ctx context.Context, briefID, recipientID string) (*Recipient, error)

	// ListByBrief returns recipients ordered by share time, oldest first.
	ListByBrief(ctx context.Context, briefID string) ([]Recipient, error)

	CountByBrief(ctx context.Context, briefID string) (int, error)
	ExistsByEmail(ctx context.Context, briefID, email string) (bool, error)
	Delete(ctx context.Context, recipientID string) error

	// IsRecipient reports whether a recipient row matches the user ID or,
	// for rows still pending, the email.
	IsRecipient(ctx context.Context, briefID, userID, email string) (bool, error)

	// ResolvePending binds every pending row for email to userID and
	// returns how many rows were bound.
	ResolvePending(ctx context.Context, email, userID string) (int64, error)
}

type recipientRepository struct {
	db *sql.DB
}

// NewRecipientRepository creates a new recipient repository backed by the
// given DB pool.
func NewRecipientRepository(db *sql.DB) RecipientRepository {
	return &recipientRepository{db: db}
}

const recipientColumns = `id, brief_id, recipient_user_id, recipient_email, shared_by, shared_at`

func scanRecipient(row rowScanner) (*Recipient, error) {
	rec := &Recipient{}
	err := row.Scan(&rec.ID, &rec.BriefID, &rec.UserID, &rec.Email, &rec.SharedBy, &rec.SharedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts a new recipient row.
func (r *recipientRepository) Create(ctx context.Context, rec *Recipient) error {
	query := `INSERT INTO brief_recipients (` + recipientColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := database.QuerierFromCtx(ctx, r.db).ExecContext(ctx, query,
		rec.ID, rec.BriefID, rec.UserID, rec.Email, rec.SharedBy, rec.SharedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return apperror.NewConflict("brief is already shared with this email")
		}
		return fmt.Errorf("inserting recipient: %w", err)
	}
	return nil
}

// FindByID retrieves a recipient scoped to its brief.
func (r *recipientRepository) FindByID(ctx context.Context, briefID, recipientID string) (*Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM brief_recipients WHERE id = ? AND brief_id = ?`
	rec, err := scanRecipient(database.QuerierFromCtx(ctx, r.db).QueryRowContext(ctx, query, recipientID, briefID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("recipient not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying recipient: %w", err)
	}
	return rec, nil
}

// ListByBrief returns every recipient of a brief in share order.
func (r *recipientRepository) ListByBrief(ctx context.Context, briefID string) ([]Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM brief_recipients
	          WHERE brief_id = ?
	          ORDER BY shared_at ASC, id ASC`
	rows, err := database.QuerierFromCtx(ctx, r.db).QueryContext(ctx, query, briefID)
	if err != nil {
		return nil, fmt.Errorf("listing recipients: %w", err)
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning recipient row: %w", err)
		}
		recipients = append(recipients, *rec)
	}
	return recipients, rows.Err()
}

// CountByBrief returns the number of recipients on a brief.
func (r *recipientRepository) CountByBrief(ctx context.Context, briefID string) (int, error) {
	var count int
	err := database.QuerierFromCtx(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM brief_recipients WHERE brief_id = ?`, briefID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting recipients: %w", err)
	}
	return count, nil
}

// ExistsByEmail reports whether the email is already on the brief.
func (r *recipientRepository) ExistsByEmail(ctx context.Context, briefID, email string) (bool, error) {
	var exists bool
	err := database.QuerierFromCtx(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM brief_recipients WHERE brief_id = ? AND recipient_email = ?)`,
		briefID, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking recipient email: %w", err)
	}
	return exists, nil
}

// Delete removes a recipient row.
func (r *recipientRepository) Delete(ctx context.Context, recipientID string) error {
	result, err := database.QuerierFromCtx(ctx, r.db).ExecContext(ctx,
		`DELETE FROM brief_recipients WHERE id = ?`, recipientID)
	if err != nil {
		return fmt.Errorf("deleting recipient: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting recipient: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("recipient not found")
	}
	return nil
}

// IsRecipient checks both bound and pending rows.
func (r *recipientRepository) IsRecipient(ctx context.Context, briefID, userID, email string) (bool, error) {
	var exists bool
	err := database.QuerierFromCtx(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS(
		     SELECT 1 FROM brief_recipients
		     WHERE brief_id = ?
		       AND (recipient_user_id = ? OR (recipient_user_id IS NULL AND recipient_email = ?))
		 )`,
		briefID, userID, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking recipient: %w", err)
	}
	return exists, nil
}

// ResolvePending binds pending rows for an email to a newly known user.
func (r *recipientRepository) ResolvePending(ctx context.Context, email, userID string) (int64, error) {
	result, err := database.QuerierFromCtx(ctx, r.db).ExecContext(ctx,
		`UPDATE brief_recipients SET recipient_user_id = ?
		 WHERE recipient_email = ? AND recipient_user_id IS NULL`,
		userID, email,
	)
	if err != nil {
		return 0, fmt.Errorf("resolving pending recipients: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resolving pending recipients: %w", err)
	}
	return n, nil
}
