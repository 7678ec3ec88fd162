package smtp

import (
	"bufio"
	"context"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/config"
)

// fakeServer accepts a single SMTP session and records the envelope and
// message data.
type fakeServer struct {
	ln   net.Listener
	wg   sync.WaitGroup
	from string
	to   []string
	data string
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{ln: ln}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) serve() {
	defer s.wg.Done()
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
	reply("220 fake ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250 fake")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			s.from = strings.Trim(cmd[len("MAIL FROM:"):], "<> ")
			reply("250 ok")
		case strings.HasPrefix(upper, "RCPT TO:"):
			s.to = append(s.to, strings.Trim(cmd[len("RCPT TO:"):], "<> "))
			reply("250 ok")
		case upper == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.data = b.String()
			reply("250 queued")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 ok")
		}
	}
}

func TestSendMail_PlainConnection(t *testing.T) {
	srv := startFakeServer(t)
	svc := NewSMTPService(config.SMTPConfig{
		Host:        "127.0.0.1",
		Port:        srv.port(),
		FromAddress: "noreply@example.com",
		FromName:    "Briefly",
		Encryption:  EncryptionNone,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.True(t, svc.IsConfigured(ctx))
	err := svc.SendMail(ctx, []string{"client@example.com"}, "Olive shared a brief with you", "line one\nline two")
	require.NoError(t, err)

	srv.wg.Wait()
	assert.Equal(t, "noreply@example.com", srv.from)
	assert.Equal(t, []string{"client@example.com"}, srv.to)
	assert.Contains(t, srv.data, "Subject: Olive shared a brief with you\r\n")
	assert.Contains(t, srv.data, "line one\r\nline two")
}

func TestSendMail_NotConfigured(t *testing.T) {
	svc := NewSMTPService(config.SMTPConfig{})
	assert.False(t, svc.IsConfigured(context.Background()))

	err := svc.SendMail(context.Background(), []string{"a@example.com"}, "s", "b")
	require.Error(t, err)
	assert.True(t, apperror.HasType(err, apperror.TypeBadRequest))
}

func TestSendMail_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	svc := NewSMTPService(config.SMTPConfig{Host: "127.0.0.1", Port: port, Encryption: EncryptionNone})
	err = svc.SendMail(context.Background(), []string{"a@example.com"}, "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:"+strconv.Itoa(port))
}

func TestMailBytes_StripsHeaderInjection(t *testing.T) {
	m := Mail{
		From:    mail.Address{Name: "Briefly", Address: "noreply@example.com"},
		To:      []string{"a@example.com"},
		Subject: "Hello\r\nBcc: victim@example.com",
		Body:    "hi",
		Date:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	out := string(m.Bytes())
	assert.NotContains(t, out, "\r\nBcc:")
	assert.Contains(t, out, "Subject: Hello  Bcc: victim@example.com\r\n")
	assert.Contains(t, out, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n")
}
