package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/background"
)

// perPage is the number of audit entries returned per history page.
const perPage = 50

// writeTimeout bounds a single background audit insert.
const writeTimeout = 5 * time.Second

// Recorder is the cross-plugin contract for writing audit entries. Record
// never fails and never blocks on the database write.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// AuditService handles recording and reading the audit log.
type AuditService interface {
	Recorder

	// BriefHistory returns a page of entries for a brief, newest first.
	// Pages are 1-indexed.
	BriefHistory(ctx context.Context, briefID string, page int) (*HistoryPage, error)

	// Wait stops accepting new writes and blocks until in-flight ones
	// finish or ctx expires. Called during graceful shutdown.
	Wait(ctx context.Context) error
}

// auditService implements AuditService.
type auditService struct {
	repo    AuditRepository
	writers background.Group
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// Record stamps the entry and writes it on a background goroutine. The
// write is detached from the request context so a finished request does
// not cancel it. Failures, and entries recorded after Wait, are logged and
// dropped.
func (s *auditService) Record(ctx context.Context, entry Entry) {
	if entry.Action == "" || entry.EntityType == "" || entry.EntityID == "" {
		slog.Error("dropping malformed audit entry",
			slog.String("action", entry.Action),
			slog.String("entity_type", entry.EntityType),
			slog.String("entity_id", entry.EntityID),
		)
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	started := s.writers.Go(func() {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()

		if err := s.repo.Log(writeCtx, &entry); err != nil {
			slog.Error("failed to write audit log entry",
				slog.String("action", entry.Action),
				slog.String("entity_type", entry.EntityType),
				slog.String("entity_id", entry.EntityID),
				slog.Any("error", err),
			)
		}
	})
	if !started {
		slog.Error("dropping audit entry recorded after shutdown",
			slog.String("action", entry.Action),
			slog.String("entity_type", entry.EntityType),
			slog.String("entity_id", entry.EntityID),
		)
	}
}

// BriefHistory returns the paginated history for a brief. Invalid page
// numbers are clamped to 1.
func (s *auditService) BriefHistory(ctx context.Context, briefID string, page int) (*HistoryPage, error) {
	if briefID == "" {
		return nil, apperror.NewBadRequest("brief ID is required")
	}
	if page < 1 {
		page = 1
	}

	entries, total, err := s.repo.ListForBrief(ctx, briefID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing brief history: %w", err))
	}
	if entries == nil {
		entries = []Entry{}
	}

	return &HistoryPage{Entries: entries, Total: total, Page: page, PerPage: perPage}, nil
}

// Wait closes the writer group and drains it.
func (s *auditService) Wait(ctx context.Context) error {
	if err := s.writers.Wait(ctx); err != nil {
		return fmt.Errorf("audit writes: %w", err)
	}
	return nil
}
