package briefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/config"
	"github.com/keyxmakerx/briefly/internal/plugins/audit"
	"github.com/keyxmakerx/briefly/internal/plugins/auth"
)

// --- In-memory store backing both repositories ---

type memStore struct {
	mu         sync.Mutex
	briefs     map[string]Brief
	recipients []Recipient
}

func newMemStore() *memStore {
	return &memStore{briefs: map[string]Brief{}}
}

type memBriefRepo struct {
	s *memStore
}

func (r *memBriefRepo) Create(ctx context.Context, b *Brief) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.briefs[b.ID] = *b
	return nil
}

func (r *memBriefRepo) FindByID(ctx context.Context, id string) (*Brief, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.briefs[id]
	if !ok {
		return nil, apperror.NewNotFound("brief not found")
	}
	return &b, nil
}

func (r *memBriefRepo) FindByIDForUpdate(ctx context.Context, id string) (*Brief, error) {
	return r.FindByID(ctx, id)
}

func (r *memBriefRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Brief, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []Brief
	for _, b := range r.s.briefs {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return page(out, limit, offset), len(out), nil
}

func (r *memBriefRepo) ListSharedWith(ctx context.Context, userID, email string, limit, offset int) ([]Brief, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	var out []Brief
	for _, rec := range r.s.recipients {
		bound := rec.UserID != nil && *rec.UserID == userID
		pending := rec.UserID == nil && rec.Email == email
		if (bound || pending) && !seen[rec.BriefID] {
			seen[rec.BriefID] = true
			out = append(out, r.s.briefs[rec.BriefID])
		}
	}
	return page(out, limit, offset), len(out), nil
}

func page(briefs []Brief, limit, offset int) []Brief {
	sort.Slice(briefs, func(i, j int) bool { return briefs[i].CreatedAt.After(briefs[j].CreatedAt) })
	if offset >= len(briefs) {
		return nil
	}
	end := min(offset+limit, len(briefs))
	return briefs[offset:end]
}

func (r *memBriefRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, b := range r.s.briefs {
		if b.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *memBriefRepo) LockOwner(ctx context.Context, ownerID string) error { return nil }

func (r *memBriefRepo) UpdateContent(ctx context.Context, id string, upd ContentUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.briefs[id]
	if !ok {
		return apperror.NewNotFound("brief not found")
	}
	if upd.Header != nil {
		b.Header = *upd.Header
	}
	if upd.Content != nil {
		b.Content = upd.Content
	}
	if upd.Footer != nil {
		if *upd.Footer == "" {
			b.Footer = nil
		} else {
			footer := *upd.Footer
			b.Footer = &footer
		}
	}
	at := upd.At
	b.Status = upd.Status
	b.StatusChangedBy = nil
	b.StatusChangedAt = &at
	b.UpdatedAt = at
	r.s.briefs[id] = b
	return nil
}

func (r *memBriefRepo) UpdateStatus(ctx context.Context, id string, status Status, changedBy *string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.briefs[id]
	if !ok {
		return apperror.NewNotFound("brief not found")
	}
	b.Status = status
	b.StatusChangedBy = changedBy
	b.StatusChangedAt = &at
	b.UpdatedAt = at
	r.s.briefs[id] = b
	return nil
}

func (r *memBriefRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.briefs[id]; !ok {
		return apperror.NewNotFound("brief not found")
	}
	delete(r.s.briefs, id)
	kept := r.s.recipients[:0]
	for _, rec := range r.s.recipients {
		if rec.BriefID != id {
			kept = append(kept, rec)
		}
	}
	r.s.recipients = kept
	return nil
}

type memRecipientRepo struct {
	s *memStore
}

func (r *memRecipientRepo) Create(ctx context.Context, rec *Recipient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.recipients {
		if existing.BriefID == rec.BriefID && existing.Email == rec.Email {
			return apperror.NewConflict("brief is already shared with this email")
		}
	}
	r.s.recipients = append(r.s.recipients, *rec)
	return nil
}

func (r *memRecipientRepo) FindByID(ctx context.Context, briefID, recipientID string) (*Recipient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.recipients {
		if rec.ID == recipientID && rec.BriefID == briefID {
			return &rec, nil
		}
	}
	return nil, apperror.NewNotFound("recipient not found")
}

func (r *memRecipientRepo) ListByBrief(ctx context.Context, briefID string) ([]Recipient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []Recipient
	for _, rec := range r.s.recipients {
		if rec.BriefID == briefID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SharedAt.Before(out[j].SharedAt) })
	return out, nil
}

func (r *memRecipientRepo) CountByBrief(ctx context.Context, briefID string) (int, error) {
	list, _ := r.ListByBrief(ctx, briefID)
	return len(list), nil
}

func (r *memRecipientRepo) ExistsByEmail(ctx context.Context, briefID, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.recipients {
		if rec.BriefID == briefID && rec.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRecipientRepo) Delete(ctx context.Context, recipientID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, rec := range r.s.recipients {
		if rec.ID == recipientID {
			r.s.recipients = append(r.s.recipients[:i], r.s.recipients[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("recipient not found")
}

func (r *memRecipientRepo) IsRecipient(ctx context.Context, briefID, userID, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.recipients {
		if rec.BriefID != briefID {
			continue
		}
		if rec.UserID != nil && *rec.UserID == userID {
			return true, nil
		}
		if rec.UserID == nil && rec.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRecipientRepo) ResolvePending(ctx context.Context, email, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i := range r.s.recipients {
		if r.s.recipients[i].UserID == nil && r.s.recipients[i].Email == email {
			id := userID
			r.s.recipients[i].UserID = &id
			n++
		}
	}
	return n, nil
}

// --- Collaborator fakes ---

// passthroughTx runs fn directly; the in-memory store has no rollback.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAudit) Record(ctx context.Context, entry audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func (a *recordingAudit) last(action string) *audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.entries) - 1; i >= 0; i-- {
		if a.entries[i].Action == action {
			e := a.entries[i]
			return &e
		}
	}
	return nil
}

type appendedComment struct {
	BriefID, AuthorID, Content string
}

type fakeComments struct {
	mu       sync.Mutex
	appended []appendedComment
	err      error
}

func (c *fakeComments) Append(ctx context.Context, briefID, authorID, content string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appended = append(c.appended, appendedComment{briefID, authorID, content})
	return fmt.Sprintf("comment-%d", len(c.appended)), nil
}

type fakeUsers struct {
	byEmail map[string]*AccountUser
	err     error
}

func (u *fakeUsers) FindUserByEmail(ctx context.Context, email string) (*AccountUser, error) {
	if u.err != nil {
		return nil, u.err
	}
	if user, ok := u.byEmail[email]; ok {
		return user, nil
	}
	return nil, apperror.NewNotFound("user not found")
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) NotifyShared(ctx context.Context, brief *Brief, rec *Recipient, sharerName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, rec.Email)
}

// --- Fixture ---

var (
	owner    = Caller{UserID: "owner-1", Email: "owner@example.com", Name: "Olive"}
	client   = Caller{UserID: "client-1", Email: "client@example.com", Name: "Cal"}
	client2  = Caller{UserID: "client-2", Email: "second@example.com", Name: "Sam"}
	stranger = Caller{UserID: "stranger-1", Email: "stranger@example.com", Name: "Stan"}
)

type fixture struct {
	store      *memStore
	briefRepo  *memBriefRepo
	recipients *memRecipientRepo
	access     AccessResolver
	engine     StatusEngine
	directory  RecipientDirectory
	service    BriefService
	audit      *recordingAudit
	comments   *fakeComments
	users      *fakeUsers
	notifier   *fakeNotifier
}

func testLimits() config.BriefsConfig {
	return config.BriefsConfig{MaxPerOwner: 3, WarnAt: 2, MaxRecipients: 2, NotifyOnShare: true}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	f := &fixture{
		store:      store,
		briefRepo:  &memBriefRepo{s: store},
		recipients: &memRecipientRepo{s: store},
		audit:      &recordingAudit{},
		comments:   &fakeComments{},
		notifier:   &fakeNotifier{},
		users: &fakeUsers{byEmail: map[string]*AccountUser{
			owner.Email:   {ID: owner.UserID, Email: owner.Email, DisplayName: owner.Name},
			client.Email:  {ID: client.UserID, Email: client.Email, DisplayName: client.Name},
			client2.Email: {ID: client2.UserID, Email: client2.Email, DisplayName: client2.Name},
		}},
	}

	limits := testLimits()
	f.access = NewAccessResolver(f.briefRepo, f.recipients)
	f.engine = NewStatusEngine(f.access, f.briefRepo, f.comments, passthroughTx{}, f.audit)
	f.directory = NewRecipientDirectory(DirectoryDeps{
		Access:        f.access,
		Recipients:    f.recipients,
		Briefs:        f.briefRepo,
		Users:         f.users,
		Engine:        f.engine,
		Tx:            passthroughTx{},
		Audit:         f.audit,
		Notifier:      f.notifier,
		MaxRecipients: limits.MaxRecipients,
	})
	f.service = NewBriefService(f.access, f.briefRepo, passthroughTx{}, f.audit, limits)
	return f
}

// seedBrief stores a brief owned by owner in the given status.
func (f *fixture) seedBrief(t *testing.T, status Status) *Brief {
	t.Helper()
	now := time.Now().UTC()
	b := &Brief{
		ID:        fmt.Sprintf("brief-%d", len(f.store.briefs)+1),
		OwnerID:   owner.UserID,
		Header:    "Spring campaign",
		Content:   json.RawMessage(`{"type":"doc"}`),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.briefRepo.Create(context.Background(), b))
	return b
}

// seedRecipient adds a recipient row directly.
func (f *fixture) seedRecipient(t *testing.T, briefID string, who Caller) *Recipient {
	t.Helper()
	id := who.UserID
	rec := &Recipient{
		ID:       "rec-" + who.UserID + "-" + briefID,
		BriefID:  briefID,
		UserID:   &id,
		Email:    who.Email,
		SharedBy: owner.UserID,
		SharedAt: time.Now().UTC(),
	}
	require.NoError(t, f.recipients.Create(context.Background(), rec))
	return rec
}

func (f *fixture) status(t *testing.T, briefID string) Status {
	t.Helper()
	b, err := f.briefRepo.FindByID(context.Background(), briefID)
	require.NoError(t, err)
	return b.Status
}

// assertAppError checks that err is an AppError with the given type.
func assertAppError(t *testing.T, err error, errType string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperror.HasType(err, errType), "expected %s error, got %v", errType, err)
}

func sessionFor(c Caller) *auth.Session {
	return &auth.Session{UserID: c.UserID, Email: c.Email, Name: c.Name, Role: auth.RoleCreator}
}
