// Package smtp sends outbound email. Settings come from config.SMTPConfig;
// mail is disabled when no host is configured.
package smtp

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Encryption modes.
const (
	EncryptionStartTLS = "starttls"
	EncryptionSSL      = "ssl"
	EncryptionNone     = "none"
)

// Mail represents an email message to be sent.
type Mail struct {
	From    mail.Address
	To      []string
	Subject string
	Body    string
	Date    time.Time
}

// Bytes renders the message as RFC 5322 text with CRLF line endings.
func (m Mail) Bytes() []byte {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.From.String()))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(m.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", headerSafe(m.Subject)))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", m.Date.UTC().Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(msg.String())
}

// headerSafe strips CR and LF so user-controlled text (a brief header in a
// subject line) cannot inject extra headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
