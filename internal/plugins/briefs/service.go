package briefs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/config"
	"github.com/keyxmakerx/briefly/internal/database"
	"github.com/keyxmakerx/briefly/internal/plugins/audit"
)

// BriefService handles business logic for brief documents. Status changes
// caused by sharing and decisions live in StatusEngine and
// RecipientDirectory.
type BriefService interface {
	Create(ctx context.Context, caller Caller, input CreateBriefInput) (*Brief, error)
	Get(ctx context.Context, briefID string, caller Caller) (*BriefView, error)
	ListOwned(ctx context.Context, caller Caller, opts ListOptions) (*ListPage, error)
	ListShared(ctx context.Context, caller Caller, opts ListOptions) (*ListPage, error)

	// UpdateContent edits header, content or footer and always returns the
	// brief to draft.
	UpdateContent(ctx context.Context, briefID string, caller Caller, input UpdateContentInput) (*Brief, error)

	Delete(ctx context.Context, briefID string, caller Caller) error
	Quota(ctx context.Context, ownerID string) (*Quota, error)
}

type briefService struct {
	access AccessResolver
	repo   BriefRepository
	tx     database.Transactor
	audit  audit.Recorder
	limits config.BriefsConfig
}

// NewBriefService creates a new brief service with the given dependencies.
func NewBriefService(access AccessResolver, repo BriefRepository, tx database.Transactor, recorder audit.Recorder, limits config.BriefsConfig) BriefService {
	return &briefService{
		access: access,
		repo:   repo,
		tx:     tx,
		audit:  recorder,
		limits: limits,
	}
}

// Create validates and stores a new draft brief. The owner's row is locked
// while counting so concurrent creates cannot exceed the quota.
func (s *briefService) Create(ctx context.Context, caller Caller, input CreateBriefInput) (*Brief, error) {
	header, headerErr := cleanHeader(input.Header)
	content, contentErr := cleanContent(input.Content)
	var footer string
	var footerErr *apperror.FieldError
	if input.Footer != nil {
		footer, footerErr = cleanFooter(*input.Footer)
	}
	if err := fieldErrors(headerErr, contentErr, footerErr); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	brief := &Brief{
		ID:        uuid.NewString(),
		OwnerID:   caller.UserID,
		Header:    header,
		Content:   content,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if footer != "" {
		brief.Footer = &footer
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockOwner(ctx, caller.UserID); err != nil {
			return err
		}
		count, err := s.repo.CountByOwner(ctx, caller.UserID)
		if err != nil {
			return err
		}
		if count >= s.limits.MaxPerOwner {
			return apperror.NewValidation(fmt.Sprintf("brief limit reached: you can have at most %d briefs", s.limits.MaxPerOwner))
		}
		return s.repo.Create(ctx, brief)
	})
	if err != nil {
		return nil, internalOr(err)
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     audit.UserRef(caller.UserID),
		Action:     audit.ActionBriefCreated,
		EntityType: audit.EntityBrief,
		EntityID:   brief.ID,
		NewData:    brief.snapshot(),
	})

	slog.Info("brief created",
		slog.String("brief_id", brief.ID),
		slog.String("owner_id", caller.UserID),
	)
	return brief, nil
}

// Get returns the brief with the caller's role on it.
func (s *briefService) Get(ctx context.Context, briefID string, caller Caller) (*BriefView, error) {
	brief, role, err := s.access.RequireAnyAccess(ctx, briefID, caller)
	if err != nil {
		return nil, err
	}
	return &BriefView{Brief: brief, Role: role}, nil
}

func (s *briefService) ListOwned(ctx context.Context, caller Caller, opts ListOptions) (*ListPage, error) {
	opts = opts.normalize()
	briefs, total, err := s.repo.ListByOwner(ctx, caller.UserID, opts.PerPage, opts.Offset())
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return newListPage(briefs, total, opts), nil
}

func (s *briefService) ListShared(ctx context.Context, caller Caller, opts ListOptions) (*ListPage, error) {
	opts = opts.normalize()
	briefs, total, err := s.repo.ListSharedWith(ctx, caller.UserID, caller.Email, opts.PerPage, opts.Offset())
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return newListPage(briefs, total, opts), nil
}

func newListPage(briefs []Brief, total int, opts ListOptions) *ListPage {
	if briefs == nil {
		briefs = []Brief{}
	}
	return &ListPage{Briefs: briefs, Total: total, Page: opts.Page, PerPage: opts.PerPage}
}

// UpdateContent applies a partial edit. Any edit, including one to a brief
// that already has a decision, resets the status to draft and clears
// status_changed_by.
func (s *briefService) UpdateContent(ctx context.Context, briefID string, caller Caller, input UpdateContentInput) (*Brief, error) {
	if _, err := s.access.RequireOwner(ctx, briefID, caller); err != nil {
		return nil, err
	}
	if input.empty() {
		return nil, apperror.NewValidation("at least one of header, content or footer is required")
	}

	upd := ContentUpdate{}
	var headerErr, contentErr, footerErr *apperror.FieldError
	if input.Header != nil {
		var header string
		header, headerErr = cleanHeader(*input.Header)
		upd.Header = &header
	}
	if input.Content != nil {
		upd.Content, contentErr = cleanContent(input.Content)
	}
	if input.Footer != nil {
		var footer string
		footer, footerErr = cleanFooter(*input.Footer)
		upd.Footer = &footer
	}
	if err := fieldErrors(headerErr, contentErr, footerErr); err != nil {
		return nil, err
	}

	var before, after *Brief
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindByIDForUpdate(ctx, briefID)
		if err != nil {
			return err
		}
		next, err := NextStatus(current.Status, TriggerContentEdited)
		if err != nil {
			return err
		}

		upd.Status = next
		upd.At = time.Now().UTC()
		if err := s.repo.UpdateContent(ctx, briefID, upd); err != nil {
			return err
		}

		before = current
		after, err = s.repo.FindByID(ctx, briefID)
		return err
	})
	if err != nil {
		return nil, internalOr(err)
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     audit.UserRef(caller.UserID),
		Action:     audit.ActionBriefUpdated,
		EntityType: audit.EntityBrief,
		EntityID:   briefID,
		OldData:    before.snapshot(),
		NewData:    after.snapshot(),
	})

	return after, nil
}

// Delete removes a brief and, by cascade, its recipients and comments. The
// audit entry is recorded before the row disappears.
func (s *briefService) Delete(ctx context.Context, briefID string, caller Caller) error {
	brief, err := s.access.RequireOwner(ctx, briefID, caller)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     audit.UserRef(caller.UserID),
		Action:     audit.ActionBriefDeleted,
		EntityType: audit.EntityBrief,
		EntityID:   briefID,
		OldData:    brief.snapshot(),
	})

	if err := s.repo.Delete(ctx, briefID); err != nil {
		return internalOr(err)
	}

	slog.Info("brief deleted",
		slog.String("brief_id", briefID),
		slog.String("owner_id", caller.UserID),
	)
	return nil
}

// Quota reports the owner's brief count against the configured limits.
func (s *briefService) Quota(ctx context.Context, ownerID string) (*Quota, error) {
	count, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return &Quota{
		Count:     count,
		Limit:     s.limits.MaxPerOwner,
		WarnAt:    s.limits.WarnAt,
		NearLimit: count >= s.limits.WarnAt,
		AtLimit:   count >= s.limits.MaxPerOwner,
	}, nil
}
