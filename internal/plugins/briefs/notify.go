package briefs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyxmakerx/briefly/internal/background"
)

// MailService is the interface for sending email. Implemented by the SMTP
// plugin.
type MailService interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
	IsConfigured(ctx context.Context) bool
}

// ShareNotifier tells a recipient that a brief was shared with them.
// Implementations must not block the caller.
type ShareNotifier interface {
	NotifyShared(ctx context.Context, brief *Brief, rec *Recipient, sharerName string)
}

// notifyTimeout bounds a single share notification send.
const notifyTimeout = 30 * time.Second

// MailNotifier emails recipients when a brief is shared with them.
type MailNotifier struct {
	mail    MailService
	baseURL string
	sends   background.Group
}

// NewMailNotifier returns a notifier that emails recipients through mail.
func NewMailNotifier(mail MailService, baseURL string) *MailNotifier {
	return &MailNotifier{mail: mail, baseURL: baseURL}
}

// NotifyShared sends the email on a background goroutine. Failures are
// logged; the share itself has already succeeded.
func (n *MailNotifier) NotifyShared(ctx context.Context, brief *Brief, rec *Recipient, sharerName string) {
	if !n.mail.IsConfigured(ctx) {
		return
	}

	subject := fmt.Sprintf("%s shared a brief with you", sharerName)
	body := shareBody(brief, rec, sharerName, n.baseURL)

	started := n.sends.Go(func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := n.mail.SendMail(sendCtx, []string{rec.Email}, subject, body); err != nil {
			slog.Warn("failed to send share notification",
				slog.String("brief_id", brief.ID),
				slog.String("to", rec.Email),
				slog.Any("error", err),
			)
		}
	})
	if !started {
		slog.Warn("skipping share notification during shutdown",
			slog.String("brief_id", brief.ID),
			slog.String("to", rec.Email),
		)
	}
}

// Wait stops accepting new sends and blocks until in-flight ones finish or
// ctx is done.
func (n *MailNotifier) Wait(ctx context.Context) error {
	if err := n.sends.Wait(ctx); err != nil {
		return fmt.Errorf("share notifications: %w", err)
	}
	return nil
}

func shareBody(brief *Brief, rec *Recipient, sharerName, baseURL string) string {
	link := fmt.Sprintf("%s/briefs/%s", baseURL, brief.ID)
	if rec.IsPending() {
		return fmt.Sprintf(
			"%s shared the brief \"%s\" with you on Briefly.\n\n"+
				"Create an account with this email address to read it and respond:\n%s/register\n\n"+
				"Once registered, the brief will be waiting at:\n%s",
			sharerName, brief.Header, baseURL, link,
		)
	}
	return fmt.Sprintf(
		"%s shared the brief \"%s\" with you on Briefly.\n\n"+
			"Open it to read it and respond:\n%s",
		sharerName, brief.Header, link,
	)
}
