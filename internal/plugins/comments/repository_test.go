package comments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/briefly/internal/config"
	"github.com/keyxmakerx/briefly/internal/database"
	"github.com/keyxmakerx/briefly/internal/database/testdb"
	"github.com/keyxmakerx/briefly/internal/plugins/auth"
	"github.com/keyxmakerx/briefly/internal/plugins/briefs"
)

// TestPendingRecipientScenario walks a brief through a pending share,
// registration, a needs_modification decision and an owner edit against a
// real MariaDB.
func TestPendingRecipientScenario(t *testing.T) {
	db := testdb.Setup(t)
	ctx := context.Background()

	ownerID := testdb.InsertUser(t, db, "00000000-0000-0000-0000-0000000000a1", "owner@example.com", "creator")
	u1 := briefs.Caller{UserID: ownerID, Email: "owner@example.com", Name: "Owner"}

	rec := &recordingAudit{}
	tx := database.NewTxManager(db)
	briefRepo := briefs.NewBriefRepository(db)
	recipientRepo := briefs.NewRecipientRepository(db)
	access := briefs.NewAccessResolver(briefRepo, recipientRepo)
	ledger := NewCommentService(access, NewCommentRepository(db), tx, rec)
	engine := briefs.NewStatusEngine(access, briefRepo, ledger, tx, rec)
	limits := config.BriefsConfig{MaxPerOwner: 20, WarnAt: 18, MaxRecipients: 10}
	directory := briefs.NewRecipientDirectory(briefs.DirectoryDeps{
		Access:        access,
		Recipients:    recipientRepo,
		Briefs:        briefRepo,
		Users:         briefs.NewUserFinderAdapter(auth.NewUserRepository(db)),
		Engine:        engine,
		Tx:            tx,
		Audit:         rec,
		MaxRecipients: limits.MaxRecipients,
	})
	service := briefs.NewBriefService(access, briefRepo, tx, rec, limits)

	b, err := service.Create(ctx, u1, briefs.CreateBriefInput{
		Header:  "Original header",
		Content: json.RawMessage(`{"type":"doc"}`),
	})
	require.NoError(t, err)

	_, err = directory.Share(ctx, b.ID, u1, "a@x.com")
	require.NoError(t, err)
	assertStatus(t, service, b.ID, u1, briefs.StatusSent)

	u2ID := testdb.InsertUser(t, db, "00000000-0000-0000-0000-0000000000a2", "a@x.com", "client")
	require.NoError(t, directory.OnUserRegistered(ctx, u2ID, "a@x.com"))
	u2 := briefs.Caller{UserID: u2ID, Email: "a@x.com"}

	decided, err := engine.Decide(ctx, b.ID, u2, briefs.DecisionInput{
		Decision: briefs.StatusNeedsModification,
		Comment:  "fix the header",
	})
	require.NoError(t, err)
	assert.Equal(t, briefs.StatusNeedsModification, decided.Status)

	page, err := ledger.ListByBrief(ctx, b.ID, u1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Comments, 1)
	assert.Equal(t, "fix the header", page.Comments[0].Content)
	assert.Equal(t, u2ID, page.Comments[0].AuthorID)
	assert.Equal(t, "recipient", page.Comments[0].AuthorRole)

	header := "Fixed header"
	edited, err := service.UpdateContent(ctx, b.ID, u1, briefs.UpdateContentInput{Header: &header})
	require.NoError(t, err)
	assert.Equal(t, briefs.StatusDraft, edited.Status)
	assert.Equal(t, 1, edited.CommentCount)
	assert.Nil(t, edited.StatusChangedBy)

	// A second comment and its deletion keep the counter in step.
	c, err := ledger.Create(ctx, b.ID, u1, "updated, please take another look")
	require.NoError(t, err)
	require.NoError(t, ledger.Delete(ctx, b.ID, c.ID, u1))

	view, err := service.Get(ctx, b.ID, u1)
	require.NoError(t, err)
	assert.Equal(t, 1, view.CommentCount)
}

func assertStatus(t *testing.T, svc briefs.BriefService, briefID string, caller briefs.Caller, want briefs.Status) {
	t.Helper()
	view, err := svc.Get(context.Background(), briefID, caller)
	require.NoError(t, err)
	assert.Equal(t, want, view.Status)
}
