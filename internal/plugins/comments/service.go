package comments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/database"
	"github.com/keyxmakerx/briefly/internal/plugins/audit"
	"github.com/keyxmakerx/briefly/internal/plugins/briefs"
	"github.com/keyxmakerx/briefly/internal/sanitize"
)

// CommentService is the comment ledger. It also implements
// briefs.CommentWriter so the status engine can attach the feedback comment
// of a needs_modification decision inside its own transaction.
type CommentService interface {
	briefs.CommentWriter

	// Create adds a comment. The caller must be the owner or a recipient.
	Create(ctx context.Context, briefID string, caller briefs.Caller, content string) (*Comment, error)

	// ListByBrief returns comments oldest first. Pages are 1-indexed.
	ListByBrief(ctx context.Context, briefID string, caller briefs.Caller, page, perPage int) (*CommentPage, error)

	// Delete removes a comment. Only its author may delete it, whatever
	// their role on the brief.
	Delete(ctx context.Context, briefID, commentID string, caller briefs.Caller) error
}

type commentService struct {
	access briefs.AccessResolver
	repo   CommentRepository
	tx     database.Transactor
	audit  audit.Recorder
}

// NewCommentService creates the comment ledger.
func NewCommentService(access briefs.AccessResolver, repo CommentRepository, tx database.Transactor, recorder audit.Recorder) CommentService {
	return &commentService{
		access: access,
		repo:   repo,
		tx:     tx,
		audit:  recorder,
	}
}

func (s *commentService) Create(ctx context.Context, briefID string, caller briefs.Caller, content string) (*Comment, error) {
	_, role, err := s.access.RequireAnyAccess(ctx, briefID, caller)
	if err != nil {
		return nil, err
	}

	content = sanitize.Text(content)
	if err := briefs.ValidateCommentText(content); err != nil {
		return nil, err
	}

	c, err := s.insert(ctx, briefID, caller.UserID, content)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     audit.UserRef(caller.UserID),
		Action:     audit.ActionCommentCreated,
		EntityType: audit.EntityComment,
		EntityID:   c.ID,
		NewData:    c.snapshot(),
	})

	c.AuthorName = caller.Name
	c.AuthorEmail = caller.Email
	c.AuthorRole = string(role)
	return c, nil
}

// Append stores a comment without access checks or auditing. The status
// engine has already authorized the caller and audits the transition,
// which carries the comment ID. Runs in the transaction on ctx.
func (s *commentService) Append(ctx context.Context, briefID, authorID, content string) (string, error) {
	c, err := s.insert(ctx, briefID, authorID, content)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (s *commentService) insert(ctx context.Context, briefID, authorID, content string) (*Comment, error) {
	c := &Comment{
		ID:        uuid.NewString(),
		BriefID:   briefID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, c)
	})
	if err != nil {
		return nil, internalOr(err)
	}
	return c, nil
}

func (s *commentService) ListByBrief(ctx context.Context, briefID string, caller briefs.Caller, page, perPage int) (*CommentPage, error) {
	brief, _, err := s.access.RequireAnyAccess(ctx, briefID, caller)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)

	comments, err := s.repo.ListByBrief(ctx, briefID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if comments == nil {
		comments = []Comment{}
	}

	return &CommentPage{
		Comments: comments,
		Total:    brief.CommentCount,
		Page:     page,
		PerPage:  perPage,
	}, nil
}

func (s *commentService) Delete(ctx context.Context, briefID, commentID string, caller briefs.Caller) error {
	// Callers without access get NotFound even for their own old comments.
	if _, _, err := s.access.RequireAnyAccess(ctx, briefID, caller); err != nil {
		return err
	}

	c, err := s.repo.FindByID(ctx, briefID, commentID)
	if err != nil {
		return internalOr(err)
	}
	if c.AuthorID != caller.UserID {
		return apperror.NewForbidden("only the author can delete a comment")
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     audit.UserRef(caller.UserID),
		Action:     audit.ActionCommentDeleted,
		EntityType: audit.EntityComment,
		EntityID:   c.ID,
		OldData:    c.snapshot(),
	})

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, briefID, commentID)
	})
	if err != nil {
		return internalOr(err)
	}

	slog.Info("comment deleted",
		slog.String("brief_id", briefID),
		slog.String("comment_id", commentID),
	)
	return nil
}

func internalOr(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.NewInternal(err)
}
