package briefs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/plugins/audit"
)

// --- Share ---

func TestShare_DraftBecomesSent(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusDraft)

	rec, err := f.directory.Share(context.Background(), b.ID, owner, "  Client@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, client.Email, rec.Email)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, client.UserID, *rec.UserID)
	assert.False(t, rec.IsPending())

	assert.Equal(t, StatusSent, f.status(t, b.ID))
	assert.Equal(t, []string{audit.ActionRecipientShared, audit.ActionBriefStatusChanged}, f.audit.actions())

	shared := f.audit.last(audit.ActionRecipientShared)
	assert.Equal(t, b.ID, shared.NewData["brief_id"])
	assert.Equal(t, []string{client.Email}, f.notifier.sent)
}

func TestShare_SentStaysSent(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusSent)
	f.seedRecipient(t, b.ID, client)

	_, err := f.directory.Share(context.Background(), b.ID, owner, client2.Email)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, f.status(t, b.ID))
	assert.Equal(t, []string{audit.ActionRecipientShared}, f.audit.actions())
}

func TestShare_DecidedBriefKeepsStatus(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusAccepted)

	_, err := f.directory.Share(context.Background(), b.ID, owner, client2.Email)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, f.status(t, b.ID))
}

func TestShare_PendingRecipient(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusDraft)

	rec, err := f.directory.Share(context.Background(), b.ID, owner, "newcomer@example.com")
	require.NoError(t, err)
	assert.True(t, rec.IsPending())
	assert.Equal(t, StatusSent, f.status(t, b.ID))

	newcomer := Caller{UserID: "new-1", Email: "newcomer@example.com"}
	_, role, err := f.access.Resolve(context.Background(), b.ID, newcomer)
	require.NoError(t, err)
	assert.Equal(t, RoleRecipient, role)
}

func TestShare_Validation(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{"empty", ""},
		{"malformed", "not-an-email"},
		{"own email", owner.Email},
		{"own email different case", "OWNER@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.seedBrief(t, StatusDraft)

			_, err := f.directory.Share(context.Background(), b.ID, owner, tt.email)
			assertAppError(t, err, apperror.TypeValidation)
			assert.Equal(t, StatusDraft, f.status(t, b.ID))
			assert.Empty(t, f.audit.actions())
		})
	}
}

func TestShare_Duplicate(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusDraft)

	_, err := f.directory.Share(context.Background(), b.ID, owner, client.Email)
	require.NoError(t, err)

	_, err = f.directory.Share(context.Background(), b.ID, owner, "CLIENT@example.com")
	assertAppError(t, err, apperror.TypeConflict)
}

func TestShare_RecipientLimit(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusDraft)

	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := f.directory.Share(context.Background(), b.ID, owner, email)
		require.NoError(t, err)
	}

	_, err := f.directory.Share(context.Background(), b.ID, owner, "c@example.com")
	assertAppError(t, err, apperror.TypeValidation)

	list, err := f.directory.ListRecipients(context.Background(), b.ID, owner)
	require.NoError(t, err)
	assert.Len(t, list, testLimits().MaxRecipients)
}

func TestShare_AccessRules(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusSent)
	f.seedRecipient(t, b.ID, client)

	_, err := f.directory.Share(context.Background(), b.ID, client, "friend@example.com")
	assertAppError(t, err, apperror.TypeForbidden)

	_, err = f.directory.Share(context.Background(), b.ID, stranger, "friend@example.com")
	assertAppError(t, err, apperror.TypeNotFound)

	_, err = f.directory.Share(context.Background(), "missing", owner, "friend@example.com")
	assertAppError(t, err, apperror.TypeNotFound)
}

func TestShare_UserLookupFailure(t *testing.T) {
	f := newFixture(t)
	f.users.err = errors.New("users table unavailable")
	b := f.seedBrief(t, StatusDraft)

	_, err := f.directory.Share(context.Background(), b.ID, owner, client.Email)
	assertAppError(t, err, apperror.TypeInternal)
	assert.Equal(t, StatusDraft, f.status(t, b.ID))
}

// --- ListRecipients ---

func TestListRecipients_ShareOrder(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusSent)

	later := f.seedRecipient(t, b.ID, client2)
	earlier := f.seedRecipient(t, b.ID, client)
	f.store.mu.Lock()
	for i := range f.store.recipients {
		if f.store.recipients[i].ID == earlier.ID {
			f.store.recipients[i].SharedAt = later.SharedAt.Add(-time.Minute)
		}
	}
	f.store.mu.Unlock()

	list, err := f.directory.ListRecipients(context.Background(), b.ID, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, earlier.ID, list[0].ID)
	assert.Equal(t, later.ID, list[1].ID)
}

func TestListRecipients_EmptyIsNotNil(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusDraft)

	list, err := f.directory.ListRecipients(context.Background(), b.ID, owner)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestListRecipients_RecipientForbidden(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusSent)
	f.seedRecipient(t, b.ID, client)

	_, err := f.directory.ListRecipients(context.Background(), b.ID, client)
	assertAppError(t, err, apperror.TypeForbidden)
}

// --- Revoke ---

func TestRevoke_LastRecipientReturnsToDraft(t *testing.T) {
	for _, status := range []Status{StatusSent, StatusAccepted, StatusNeedsModification} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			b := f.seedBrief(t, status)
			rec := f.seedRecipient(t, b.ID, client)

			require.NoError(t, f.directory.Revoke(context.Background(), b.ID, rec.ID, owner))
			assert.Equal(t, StatusDraft, f.status(t, b.ID))
			assert.Equal(t, []string{audit.ActionRecipientRevoked, audit.ActionBriefStatusChanged}, f.audit.actions())

			revoked := f.audit.last(audit.ActionRecipientRevoked)
			assert.Equal(t, b.ID, revoked.OldData["brief_id"])

			_, role, err := f.access.Resolve(context.Background(), b.ID, client)
			require.NoError(t, err)
			assert.Equal(t, RoleNoAccess, role)
		})
	}
}

func TestRevoke_RemainingRecipientsKeepStatus(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusSent)
	rec := f.seedRecipient(t, b.ID, client)
	f.seedRecipient(t, b.ID, client2)

	require.NoError(t, f.directory.Revoke(context.Background(), b.ID, rec.ID, owner))
	assert.Equal(t, StatusSent, f.status(t, b.ID))
	assert.Equal(t, []string{audit.ActionRecipientRevoked}, f.audit.actions())
}

func TestRevoke_DraftWithLastRecipientHasNoTransition(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusDraft)
	rec := f.seedRecipient(t, b.ID, client)

	require.NoError(t, f.directory.Revoke(context.Background(), b.ID, rec.ID, owner))
	assert.Equal(t, []string{audit.ActionRecipientRevoked}, f.audit.actions())
}

func TestRevoke_Errors(t *testing.T) {
	f := newFixture(t)
	b := f.seedBrief(t, StatusSent)
	rec := f.seedRecipient(t, b.ID, client)
	other := f.seedBrief(t, StatusSent)

	err := f.directory.Revoke(context.Background(), b.ID, "missing", owner)
	assertAppError(t, err, apperror.TypeNotFound)

	err = f.directory.Revoke(context.Background(), other.ID, rec.ID, owner)
	assertAppError(t, err, apperror.TypeNotFound)

	err = f.directory.Revoke(context.Background(), b.ID, rec.ID, client)
	assertAppError(t, err, apperror.TypeForbidden)

	assert.Equal(t, StatusSent, f.status(t, b.ID))
}

// --- Pending resolution ---

func TestOnUserRegistered_BindsPendingRows(t *testing.T) {
	f := newFixture(t)
	b1 := f.seedBrief(t, StatusDraft)
	b2 := f.seedBrief(t, StatusDraft)

	for _, b := range []*Brief{b1, b2} {
		_, err := f.directory.Share(context.Background(), b.ID, owner, "late@example.com")
		require.NoError(t, err)
	}

	require.NoError(t, f.directory.OnUserRegistered(context.Background(), "late-1", "Late@Example.com"))

	list, err := f.directory.ListRecipients(context.Background(), b1.ID, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].UserID)
	assert.Equal(t, "late-1", *list[0].UserID)

	n, err := f.directory.ResolvePending(context.Background(), "late-1", "late@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err := f.service.ListShared(context.Background(), Caller{UserID: "late-1", Email: "late@example.com"}, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}
