// Package mailx sends the transactional mail the login flow needs, currently
// just two-factor codes. The SMTP client is plain net/smtp; deployments that
// don't configure a relay fall back to logging the message.
package mailx

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
)

// Mailer delivers a plain-text message to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a relay using PLAIN auth when credentials
// are configured.
type SMTPMailer struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	var auth smtp.Auth
	if m.Username != "" {
		host, _, _ := strings.Cut(m.Addr, ":")
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.From, to, subject, body)

	if err := smtp.SendMail(m.Addr, auth, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("mailx: send to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes messages to the logger instead of sending them. Used in
// development when no SMTP relay is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail (not sent, no relay configured)",
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}

// CaptureMailer records sent messages for inspection in tests.
type CaptureMailer struct {
	mu   sync.Mutex
	sent []Message

	// FailWith, when set, is returned from Send without recording.
	FailWith error
}

type Message struct {
	To      string
	Subject string
	Body    string
}

func (m *CaptureMailer) Send(_ context.Context, to, subject, body string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Message{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of all recorded messages.
func (m *CaptureMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
