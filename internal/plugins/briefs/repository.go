package briefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/database"
)

// BriefRepository defines the data access contract for brief operations.
// Every method runs on the transaction carried by ctx when there is one.
type BriefRepository interface {
	Create(ctx context.Context, brief *Brief) error
	FindByID(ctx context.Context, id string) (*Brief, error)

	// FindByIDForUpdate loads a brief and locks its row until the
	// surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id string) (*Brief, error)

	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Brief, int, error)

	// ListSharedWith returns briefs with a recipient row bound to the user or
	// pending on the user's email.
	ListSharedWith(ctx context.Context, userID, email string, limit, offset int) ([]Brief, int, error)

	CountByOwner(ctx context.Context, ownerID string) (int, error)

	// LockOwner serializes quota checks for one owner within a transaction.
	LockOwner(ctx context.Context, ownerID string) error

	UpdateContent(ctx context.Context, id string, upd ContentUpdate) error
	UpdateStatus(ctx context.Context, id string, status Status, changedBy *string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// ContentUpdate is a partial content change. Nil fields are not written. A
// Footer pointing at "" stores NULL. Status and At are always written and
// status_changed_by is cleared.
type ContentUpdate struct {
	Header  *string
	Content json.RawMessage
	Footer  *string
	Status  Status
	At      time.Time
}

// briefRepository implements BriefRepository with MariaDB queries.
type briefRepository struct {
	db *sql.DB
}

// NewBriefRepository creates a new brief repository backed by the given DB
// pool.
func NewBriefRepository(db *sql.DB) BriefRepository {
	return &briefRepository{db: db}
}

var briefColumns = []string{
	"id", "owner_id", "header", "content", "footer", "status",
	"status_changed_at", "status_changed_by", "comment_count",
	"created_at", "updated_at",
}

// prefixed returns briefColumns qualified with a table alias.
func prefixed(alias string) []string {
	out := make([]string, len(briefColumns))
	for i, c := range briefColumns {
		out[i] = alias + "." + c
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBrief(row rowScanner) (*Brief, error) {
	b := &Brief{}
	var content []byte
	var footer sql.NullString
	if err := row.Scan(
		&b.ID, &b.OwnerID, &b.Header, &content, &footer, &b.Status,
		&b.StatusChangedAt, &b.StatusChangedBy, &b.CommentCount,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Content = json.RawMessage(content)
	if footer.Valid {
		b.Footer = &footer.String
	}
	return b, nil
}

// Create inserts a new brief row.
func (r *briefRepository) Create(ctx context.Context, brief *Brief) error {
	query, args, err := sq.Insert("briefs").
		Columns("id", "owner_id", "header", "content", "footer", "status", "comment_count", "created_at", "updated_at").
		Values(brief.ID, brief.OwnerID, brief.Header, string(brief.Content), brief.Footer,
			string(brief.Status), brief.CommentCount, brief.CreatedAt, brief.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("building brief insert: %w", err)
	}

	if _, err := database.QuerierFromCtx(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting brief: %w", err)
	}
	return nil
}

// FindByID retrieves a brief by ID.
// Returns apperror.NotFound if no brief exists with this ID.
func (r *briefRepository) FindByID(ctx context.Context, id string) (*Brief, error) {
	return r.findOne(ctx, id, "")
}

// FindByIDForUpdate retrieves a brief and takes a row lock on it.
func (r *briefRepository) FindByIDForUpdate(ctx context.Context, id string) (*Brief, error) {
	return r.findOne(ctx, id, "FOR UPDATE")
}

func (r *briefRepository) findOne(ctx context.Context, id, suffix string) (*Brief, error) {
	builder := sq.Select(briefColumns...).From("briefs").Where(sq.Eq{"id": id})
	if suffix != "" {
		builder = builder.Suffix(suffix)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building brief query: %w", err)
	}

	b, err := scanBrief(database.QuerierFromCtx(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("brief not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying brief: %w", err)
	}
	return b, nil
}

// ListByOwner returns an owner's briefs, newest first, with the total count.
func (r *briefRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Brief, int, error) {
	where := sq.Eq{"b.owner_id": ownerID}
	count := sq.Select("COUNT(*)").From("briefs b").Where(where)
	list := sq.Select(prefixed("b")...).From("briefs b").Where(where)
	return r.list(ctx, count, list, limit, offset)
}

// ListSharedWith returns briefs shared with the user either by user ID or by
// email, newest first.
func (r *briefRepository) ListSharedWith(ctx context.Context, userID, email string, limit, offset int) ([]Brief, int, error) {
	where := sq.Or{
		sq.Eq{"r.recipient_user_id": userID},
		sq.And{sq.Eq{"r.recipient_user_id": nil}, sq.Eq{"r.recipient_email": email}},
	}
	count := sq.Select("COUNT(DISTINCT b.id)").
		From("briefs b").
		Join("brief_recipients r ON r.brief_id = b.id").
		Where(where)
	list := sq.Select(prefixed("b")...).Distinct().
		From("briefs b").
		Join("brief_recipients r ON r.brief_id = b.id").
		Where(where)
	return r.list(ctx, count, list, limit, offset)
}

func (r *briefRepository) list(ctx context.Context, count, list sq.SelectBuilder, limit, offset int) ([]Brief, int, error) {
	q := database.QuerierFromCtx(ctx, r.db)

	countQuery, countArgs, err := count.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building brief count: %w", err)
	}
	var total int
	if err := q.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting briefs: %w", err)
	}

	query, args, err := list.
		OrderBy("b.created_at DESC", "b.id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building brief list: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing briefs: %w", err)
	}
	defer rows.Close()

	var briefs []Brief
	for rows.Next() {
		b, err := scanBrief(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning brief row: %w", err)
		}
		briefs = append(briefs, *b)
	}
	return briefs, total, rows.Err()
}

// CountByOwner returns the number of briefs an owner currently has.
func (r *briefRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := database.QuerierFromCtx(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM briefs WHERE owner_id = ?`, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting owner briefs: %w", err)
	}
	return count, nil
}

// LockOwner locks the owner's user row. Must run inside a transaction.
func (r *briefRepository) LockOwner(ctx context.Context, ownerID string) error {
	var id string
	err := database.QuerierFromCtx(ctx, r.db).QueryRowContext(ctx,
		`SELECT id FROM users WHERE id = ? FOR UPDATE`, ownerID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NewNotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("locking owner: %w", err)
	}
	return nil
}

// UpdateContent writes only the supplied content fields plus the status
// reset.
func (r *briefRepository) UpdateContent(ctx context.Context, id string, upd ContentUpdate) error {
	builder := sq.Update("briefs").
		Set("status", string(upd.Status)).
		Set("status_changed_by", nil).
		Set("status_changed_at", upd.At).
		Set("updated_at", upd.At).
		Where(sq.Eq{"id": id})

	if upd.Header != nil {
		builder = builder.Set("header", *upd.Header)
	}
	if upd.Content != nil {
		builder = builder.Set("content", string(upd.Content))
	}
	if upd.Footer != nil {
		if *upd.Footer == "" {
			builder = builder.Set("footer", nil)
		} else {
			builder = builder.Set("footer", *upd.Footer)
		}
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("building brief update: %w", err)
	}
	return execOne(ctx, database.QuerierFromCtx(ctx, r.db), "updating brief", query, args...)
}

// UpdateStatus sets the status and who changed it.
func (r *briefRepository) UpdateStatus(ctx context.Context, id string, status Status, changedBy *string, at time.Time) error {
	query := `UPDATE briefs SET status = ?, status_changed_by = ?, status_changed_at = ?, updated_at = ?
	          WHERE id = ?`
	return execOne(ctx, database.QuerierFromCtx(ctx, r.db), "updating brief status",
		query, string(status), changedBy, at, at, id)
}

// Delete removes a brief. Recipients and comments cascade.
func (r *briefRepository) Delete(ctx context.Context, id string) error {
	return execOne(ctx, database.QuerierFromCtx(ctx, r.db), "deleting brief",
		`DELETE FROM briefs WHERE id = ?`, id)
}

// execOne runs a statement that must match exactly one brief row. The DSN
// sets clientFoundRows so identical-value updates still count as a match.
func execOne(ctx context.Context, q database.Querier, op, query string, args ...any) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return apperror.NewNotFound("brief not found")
	}
	return nil
}

// isDuplicateKey reports whether err is a MariaDB unique constraint
// violation (error 1062).
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}
