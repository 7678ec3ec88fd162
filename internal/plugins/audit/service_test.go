package audit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/briefly/internal/apperror"
)

// --- Mock Repository ---

type mockAuditRepo struct {
	mu             sync.Mutex
	logged         []Entry
	logFn          func(ctx context.Context, entry *Entry) error
	listForBriefFn func(ctx context.Context, briefID string, limit, offset int) ([]Entry, int, error)
}

func (m *mockAuditRepo) Log(ctx context.Context, entry *Entry) error {
	if m.logFn != nil {
		if err := m.logFn(ctx, entry); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logged = append(m.logged, *entry)
	return nil
}

func (m *mockAuditRepo) ListForBrief(ctx context.Context, briefID string, limit, offset int) ([]Entry, int, error) {
	if m.listForBriefFn != nil {
		return m.listForBriefFn(ctx, briefID, limit, offset)
	}
	return nil, 0, nil
}

func waitForWrites(t *testing.T, svc AuditService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx))
}

// --- Record ---

func TestRecord_WritesInBackground(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo)

	svc.Record(context.Background(), Entry{
		UserID:     UserRef("u1"),
		Action:     ActionBriefCreated,
		EntityType: EntityBrief,
		EntityID:   "b1",
		NewData:    map[string]any{"status": "draft"},
	})
	waitForWrites(t, svc)

	require.Len(t, repo.logged, 1)
	got := repo.logged[0]
	assert.Equal(t, ActionBriefCreated, got.Action)
	assert.Equal(t, "u1", *got.UserID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRecord_SurvivesCancelledRequest(t *testing.T) {
	repo := &mockAuditRepo{
		logFn: func(ctx context.Context, entry *Entry) error {
			return ctx.Err()
		},
	}
	svc := NewAuditService(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Record(ctx, Entry{Action: ActionBriefDeleted, EntityType: EntityBrief, EntityID: "b1"})
	waitForWrites(t, svc)

	assert.Len(t, repo.logged, 1)
}

func TestRecord_FailureIsSwallowed(t *testing.T) {
	repo := &mockAuditRepo{
		logFn: func(ctx context.Context, entry *Entry) error {
			return errors.New("audit_log is full")
		},
	}
	svc := NewAuditService(repo)

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), Entry{Action: ActionCommentCreated, EntityType: EntityComment, EntityID: "c1"})
	})
	waitForWrites(t, svc)
	assert.Empty(t, repo.logged)
}

func TestRecord_DropsMalformedEntry(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo)

	svc.Record(context.Background(), Entry{Action: ActionBriefUpdated})
	waitForWrites(t, svc)

	assert.Empty(t, repo.logged)
}

func TestWait_Timeout(t *testing.T) {
	release := make(chan struct{})
	repo := &mockAuditRepo{
		logFn: func(ctx context.Context, entry *Entry) error {
			<-release
			return nil
		},
	}
	svc := NewAuditService(repo)
	svc.Record(context.Background(), Entry{Action: ActionBriefUpdated, EntityType: EntityBrief, EntityID: "b1"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, svc.Wait(ctx))

	close(release)
	waitForWrites(t, svc)
}

func TestRecord_AfterWaitIsDropped(t *testing.T) {
	var calls int
	repo := &mockAuditRepo{
		logFn: func(ctx context.Context, entry *Entry) error {
			calls++
			return nil
		},
	}
	svc := NewAuditService(repo)
	waitForWrites(t, svc)

	svc.Record(context.Background(), Entry{Action: ActionBriefUpdated, EntityType: EntityBrief, EntityID: "b1"})
	waitForWrites(t, svc)

	assert.Zero(t, calls)
	assert.Empty(t, repo.logged)
}

// --- BriefHistory ---

func TestBriefHistory_ClampsPage(t *testing.T) {
	var gotOffset int
	repo := &mockAuditRepo{
		listForBriefFn: func(ctx context.Context, briefID string, limit, offset int) ([]Entry, int, error) {
			gotOffset = offset
			return []Entry{{ID: 1}}, 1, nil
		},
	}
	svc := NewAuditService(repo)

	page, err := svc.BriefHistory(context.Background(), "b1", -3)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 0, gotOffset)
	assert.Equal(t, perPage, page.PerPage)
}

func TestBriefHistory_SecondPageOffset(t *testing.T) {
	var gotOffset int
	repo := &mockAuditRepo{
		listForBriefFn: func(ctx context.Context, briefID string, limit, offset int) ([]Entry, int, error) {
			gotOffset = offset
			return nil, 0, nil
		},
	}
	svc := NewAuditService(repo)

	page, err := svc.BriefHistory(context.Background(), "b1", 2)
	require.NoError(t, err)
	assert.Equal(t, perPage, gotOffset)
	assert.NotNil(t, page.Entries)
}

func TestBriefHistory_RepoError(t *testing.T) {
	repo := &mockAuditRepo{
		listForBriefFn: func(ctx context.Context, briefID string, limit, offset int) ([]Entry, int, error) {
			return nil, 0, errors.New("db down")
		},
	}
	svc := NewAuditService(repo)

	_, err := svc.BriefHistory(context.Background(), "b1", 1)
	assert.Equal(t, http.StatusInternalServerError, apperror.SafeCode(err))
}
