package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strconv"
	"time"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/config"
)

const dialTimeout = 10 * time.Second

// MailService is the interface other plugins use to send email. The briefs
// plugin uses it for share notifications.
type MailService interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
	IsConfigured(ctx context.Context) bool
}

// smtpService implements MailService on top of net/smtp.
type smtpService struct {
	cfg config.SMTPConfig
	now func() time.Time
}

// NewSMTPService creates a mail service from static configuration.
func NewSMTPService(cfg config.SMTPConfig) MailService {
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.Encryption == "" {
		cfg.Encryption = EncryptionStartTLS
	}
	return &smtpService{cfg: cfg, now: time.Now}
}

// IsConfigured returns true if a host is configured.
func (s *smtpService) IsConfigured(ctx context.Context) bool {
	return s.cfg.Host != ""
}

// SendMail sends a plain-text email to the given addresses.
func (s *smtpService) SendMail(ctx context.Context, to []string, subject, body string) error {
	if !s.IsConfigured(ctx) {
		return apperror.NewBadRequest("SMTP is not configured")
	}
	if len(to) == 0 {
		return apperror.NewBadRequest("no recipients")
	}

	m := Mail{
		From:    mail.Address{Name: s.cfg.FromName, Address: s.cfg.FromAddress},
		To:      to,
		Subject: subject,
		Body:    body,
		Date:    s.now(),
	}

	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := s.sendMessage(client, m); err != nil {
		return err
	}

	slog.Debug("mail sent",
		slog.Int("recipients", len(to)),
		slog.String("host", s.cfg.Host),
	)
	return nil
}

// dial connects and authenticates according to the encryption mode.
func (s *smtpService) dial(ctx context.Context) (*gosmtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	var err error
	if s.cfg.Encryption == EncryptionSSL {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsConfig}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := gosmtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}

	if s.cfg.Encryption == EncryptionStartTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("starting TLS: %w", err)
		}
	}

	if s.cfg.Username != "" {
		auth := gosmtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("authenticating: %w", err)
		}
	}
	return client, nil
}

// sendMessage handles MAIL FROM, RCPT TO, DATA for an existing SMTP client.
func (s *smtpService) sendMessage(client *gosmtp.Client, m Mail) error {
	if err := client.Mail(m.From.Address); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, recipient := range m.To {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", recipient, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(m.Bytes()); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}
