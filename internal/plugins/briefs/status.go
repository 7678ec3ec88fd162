package briefs

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/database"
	"github.com/keyxmakerx/briefly/internal/plugins/audit"
	"github.com/keyxmakerx/briefly/internal/sanitize"
)

// Trigger is an event that may move a brief to a new status.
type Trigger string

const (
	TriggerShared            Trigger = "shared"
	TriggerContentEdited     Trigger = "content_edited"
	TriggerRecipientsEmptied Trigger = "recipients_emptied"

	// Decision triggers share their names with the statuses they produce.
	TriggerAccepted          Trigger = Trigger(StatusAccepted)
	TriggerRejected          Trigger = Trigger(StatusRejected)
	TriggerNeedsModification Trigger = Trigger(StatusNeedsModification)
)

// Transition is a committed status change.
type Transition struct {
	From    Status
	To      Status
	Trigger Trigger
}

// NextStatus applies the transition table. It returns from unchanged when
// the trigger is a no-op in that status, and an invalid_transition error
// when the trigger is not allowed at all.
//
//	shared              draft -> sent, otherwise no change
//	content_edited      any -> draft
//	recipients_emptied  any -> draft
//	accepted/rejected/
//	needs_modification  sent -> decision, otherwise rejected
func NextStatus(from Status, trigger Trigger) (Status, error) {
	switch trigger {
	case TriggerShared:
		if from == StatusDraft {
			return StatusSent, nil
		}
		return from, nil
	case TriggerContentEdited, TriggerRecipientsEmptied:
		return StatusDraft, nil
	case TriggerAccepted, TriggerRejected, TriggerNeedsModification:
		to := Status(trigger)
		if from != StatusSent {
			return from, apperror.NewInvalidTransition(string(from), string(to))
		}
		return to, nil
	default:
		return from, fmt.Errorf("unknown status trigger %q", trigger)
	}
}

// CommentWriter appends a comment inside the caller's transaction and
// returns its ID. The comments plugin provides the implementation.
type CommentWriter interface {
	Append(ctx context.Context, briefID, authorID, content string) (string, error)
}

// StatusEngine owns every status change on a brief.
type StatusEngine interface {
	// Decide applies a recipient's decision to a sent brief. A
	// needs_modification decision stores its comment in the same
	// transaction as the status change.
	Decide(ctx context.Context, briefID string, caller Caller, input DecisionInput) (*Brief, error)

	// Apply moves a brief for an owner-side trigger and updates brief in
	// place. It must run inside the transaction that locked the brief.
	// Returns nil when the status did not change.
	Apply(ctx context.Context, brief *Brief, trigger Trigger, actorID string) (*Transition, error)

	// Record writes the audit entry for a committed transition. A nil
	// transition records nothing.
	Record(ctx context.Context, briefID, actorID string, t *Transition, extra map[string]any)
}

type statusEngine struct {
	access   AccessResolver
	briefs   BriefRepository
	comments CommentWriter
	tx       database.Transactor
	audit    audit.Recorder
}

// NewStatusEngine creates the status engine.
func NewStatusEngine(access AccessResolver, briefs BriefRepository, comments CommentWriter, tx database.Transactor, recorder audit.Recorder) StatusEngine {
	return &statusEngine{
		access:   access,
		briefs:   briefs,
		comments: comments,
		tx:       tx,
		audit:    recorder,
	}
}

func (e *statusEngine) Decide(ctx context.Context, briefID string, caller Caller, input DecisionInput) (*Brief, error) {
	if _, err := e.access.RequireRecipientOnly(ctx, briefID, caller); err != nil {
		return nil, err
	}

	if !input.Decision.IsDecision() {
		return nil, apperror.NewFieldValidation(apperror.FieldError{
			Field:   "decision",
			Message: "must be one of accepted, rejected, needs_modification",
		})
	}

	// The comment is mandatory for needs_modification and optional for
	// accepted/rejected; when present it is stored with the decision.
	comment := sanitize.Text(input.Comment)
	if input.Decision == StatusNeedsModification || comment != "" {
		if err := ValidateCommentText(comment); err != nil {
			return nil, err
		}
	}

	var (
		updated   *Brief
		t         *Transition
		commentID string
	)
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		brief, err := e.briefs.FindByIDForUpdate(ctx, briefID)
		if err != nil {
			return err
		}

		next, err := NextStatus(brief.Status, Trigger(input.Decision))
		if err != nil {
			return err
		}

		if comment != "" {
			commentID, err = e.comments.Append(ctx, briefID, caller.UserID, comment)
			if err != nil {
				return err
			}
			brief.CommentCount++
		}

		t, err = e.move(ctx, brief, next, Trigger(input.Decision), caller.UserID)
		if err != nil {
			return err
		}
		updated = brief
		return nil
	})
	if err != nil {
		return nil, internalOr(err)
	}

	var extra map[string]any
	if commentID != "" {
		extra = map[string]any{"comment_id": commentID}
	}
	e.Record(ctx, briefID, caller.UserID, t, extra)

	return updated, nil
}

func (e *statusEngine) Apply(ctx context.Context, brief *Brief, trigger Trigger, actorID string) (*Transition, error) {
	if Status(trigger).IsDecision() {
		return nil, errors.New("decisions must go through Decide")
	}

	next, err := NextStatus(brief.Status, trigger)
	if err != nil {
		return nil, err
	}
	if next == brief.Status {
		return nil, nil
	}
	return e.move(ctx, brief, next, trigger, actorID)
}

// move persists the status change and mirrors it onto brief.
func (e *statusEngine) move(ctx context.Context, brief *Brief, next Status, trigger Trigger, actorID string) (*Transition, error) {
	now := time.Now().UTC()
	changedBy := audit.UserRef(actorID)

	if err := e.briefs.UpdateStatus(ctx, brief.ID, next, changedBy, now); err != nil {
		return nil, err
	}

	t := &Transition{From: brief.Status, To: next, Trigger: trigger}
	brief.Status = next
	brief.StatusChangedBy = changedBy
	brief.StatusChangedAt = &now
	brief.UpdatedAt = now
	return t, nil
}

func (e *statusEngine) Record(ctx context.Context, briefID, actorID string, t *Transition, extra map[string]any) {
	if t == nil {
		return
	}

	newData := map[string]any{
		"status":  string(t.To),
		"trigger": string(t.Trigger),
	}
	maps.Copy(newData, extra)

	e.audit.Record(ctx, audit.Entry{
		UserID:     audit.UserRef(actorID),
		Action:     audit.ActionBriefStatusChanged,
		EntityType: audit.EntityBrief,
		EntityID:   briefID,
		OldData:    map[string]any{"status": string(t.From)},
		NewData:    newData,
	})
}
