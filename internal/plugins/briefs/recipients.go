package briefs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/database"
	"github.com/keyxmakerx/briefly/internal/plugins/audit"
	"github.com/keyxmakerx/briefly/internal/plugins/auth"
)

// RecipientDirectory manages who a brief is shared with. Sharing a draft
// sends it; revoking the last recipient returns it to draft.
type RecipientDirectory interface {
	// ListRecipients returns the brief's recipients in share order. Owner
	// only.
	ListRecipients(ctx context.Context, briefID string, caller Caller) ([]Recipient, error)

	// Share adds an email to the recipient list. Emails without an account
	// are stored as pending and bound when the account is created.
	Share(ctx context.Context, briefID string, caller Caller, email string) (*Recipient, error)

	// Revoke removes a recipient. Owner only.
	Revoke(ctx context.Context, briefID, recipientID string, caller Caller) error

	// ResolvePending binds pending recipient rows for email to userID.
	ResolvePending(ctx context.Context, userID, email string) (int64, error)

	// OnUserRegistered implements auth.RegistrationHook.
	OnUserRegistered(ctx context.Context, userID, email string) error
}

type recipientDirectory struct {
	access        AccessResolver
	recipients    RecipientRepository
	briefs        BriefRepository
	users         UserFinder
	engine        StatusEngine
	tx            database.Transactor
	audit         audit.Recorder
	notifier      ShareNotifier // May be nil when mail is disabled.
	maxRecipients int
}

// DirectoryDeps groups the recipient directory's collaborators.
type DirectoryDeps struct {
	Access        AccessResolver
	Recipients    RecipientRepository
	Briefs        BriefRepository
	Users         UserFinder
	Engine        StatusEngine
	Tx            database.Transactor
	Audit         audit.Recorder
	Notifier      ShareNotifier
	MaxRecipients int
}

// NewRecipientDirectory creates the recipient directory.
func NewRecipientDirectory(deps DirectoryDeps) RecipientDirectory {
	return &recipientDirectory{
		access:        deps.Access,
		recipients:    deps.Recipients,
		briefs:        deps.Briefs,
		users:         deps.Users,
		engine:        deps.Engine,
		tx:            deps.Tx,
		audit:         deps.Audit,
		notifier:      deps.Notifier,
		maxRecipients: deps.MaxRecipients,
	}
}

func (d *recipientDirectory) ListRecipients(ctx context.Context, briefID string, caller Caller) ([]Recipient, error) {
	if _, err := d.access.RequireOwner(ctx, briefID, caller); err != nil {
		return nil, err
	}

	recipients, err := d.recipients.ListByBrief(ctx, briefID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if recipients == nil {
		recipients = []Recipient{}
	}
	return recipients, nil
}

func (d *recipientDirectory) Share(ctx context.Context, briefID string, caller Caller, email string) (*Recipient, error) {
	if _, err := d.access.RequireOwner(ctx, briefID, caller); err != nil {
		return nil, err
	}

	email = auth.NormalizeEmail(email)
	if !auth.ValidEmail(email) {
		return nil, apperror.NewFieldValidation(apperror.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if email == auth.NormalizeEmail(caller.Email) {
		return nil, apperror.NewFieldValidation(apperror.FieldError{Field: "email", Message: "cannot share a brief with yourself"})
	}

	rec := &Recipient{
		ID:       uuid.NewString(),
		BriefID:  briefID,
		Email:    email,
		SharedBy: caller.UserID,
		SharedAt: time.Now().UTC(),
	}

	user, err := d.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.ID == caller.UserID {
			return nil, apperror.NewFieldValidation(apperror.FieldError{Field: "email", Message: "cannot share a brief with yourself"})
		}
		rec.UserID = &user.ID
	case apperror.IsNotFound(err):
		// Pending until the email registers.
	default:
		return nil, apperror.NewInternal(fmt.Errorf("looking up recipient: %w", err))
	}

	var (
		brief *Brief
		t     *Transition
	)
	err = d.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := d.briefs.FindByIDForUpdate(ctx, briefID)
		if err != nil {
			return err
		}
		brief = locked

		exists, err := d.recipients.ExistsByEmail(ctx, briefID, email)
		if err != nil {
			return err
		}
		if exists {
			return apperror.NewConflict("brief is already shared with this email")
		}

		count, err := d.recipients.CountByBrief(ctx, briefID)
		if err != nil {
			return err
		}
		if count >= d.maxRecipients {
			return apperror.NewValidation(fmt.Sprintf("a brief can have at most %d recipients", d.maxRecipients))
		}

		if err := d.recipients.Create(ctx, rec); err != nil {
			return err
		}

		t, err = d.engine.Apply(ctx, brief, TriggerShared, caller.UserID)
		return err
	})
	if err != nil {
		return nil, internalOr(err)
	}

	d.audit.Record(ctx, audit.Entry{
		UserID:     audit.UserRef(caller.UserID),
		Action:     audit.ActionRecipientShared,
		EntityType: audit.EntityRecipient,
		EntityID:   rec.ID,
		NewData:    rec.snapshot(),
	})
	d.engine.Record(ctx, briefID, caller.UserID, t, nil)

	if d.notifier != nil {
		d.notifier.NotifyShared(ctx, brief, rec, sharerName(caller))
	}

	slog.Info("brief shared",
		slog.String("brief_id", briefID),
		slog.String("recipient_id", rec.ID),
		slog.Bool("pending", rec.IsPending()),
	)
	return rec, nil
}

func (d *recipientDirectory) Revoke(ctx context.Context, briefID, recipientID string, caller Caller) error {
	if _, err := d.access.RequireOwner(ctx, briefID, caller); err != nil {
		return err
	}

	var (
		rec *Recipient
		t   *Transition
	)
	err := d.tx.RunInTx(ctx, func(ctx context.Context) error {
		brief, err := d.briefs.FindByIDForUpdate(ctx, briefID)
		if err != nil {
			return err
		}

		rec, err = d.recipients.FindByID(ctx, briefID, recipientID)
		if err != nil {
			return err
		}
		if err := d.recipients.Delete(ctx, recipientID); err != nil {
			return err
		}

		remaining, err := d.recipients.CountByBrief(ctx, briefID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			t, err = d.engine.Apply(ctx, brief, TriggerRecipientsEmptied, caller.UserID)
		}
		return err
	})
	if err != nil {
		return internalOr(err)
	}

	d.audit.Record(ctx, audit.Entry{
		UserID:     audit.UserRef(caller.UserID),
		Action:     audit.ActionRecipientRevoked,
		EntityType: audit.EntityRecipient,
		EntityID:   rec.ID,
		OldData:    rec.snapshot(),
	})
	d.engine.Record(ctx, briefID, caller.UserID, t, nil)

	return nil
}

func (d *recipientDirectory) ResolvePending(ctx context.Context, userID, email string) (int64, error) {
	n, err := d.recipients.ResolvePending(ctx, auth.NormalizeEmail(email), userID)
	if err != nil {
		return 0, apperror.NewInternal(err)
	}
	return n, nil
}

// OnUserRegistered binds any briefs already shared with the new account's
// email.
func (d *recipientDirectory) OnUserRegistered(ctx context.Context, userID, email string) error {
	n, err := d.ResolvePending(ctx, userID, email)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("resolved pending recipients",
			slog.String("user_id", userID),
			slog.Int64("count", n),
		)
	}
	return nil
}

func sharerName(caller Caller) string {
	if caller.Name != "" {
		return caller.Name
	}
	return caller.Email
}
