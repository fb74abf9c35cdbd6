// Package notify delivers run notifications.
package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SendFunc has the signature of smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP sends plain-text emails through a relay.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	send SendFunc
	now  func() time.Time
}

// SMTPOption configures the SMTP notifier.
type SMTPOption func(*SMTP)

// WithSendFunc replaces smtp.SendMail, for tests.
func WithSendFunc(fn SendFunc) SMTPOption {
	return func(s *SMTP) {
		s.send = fn
	}
}

// NewSMTP creates a notifier for host:port. Authentication is only used
// when a username is set.
func NewSMTP(host string, port int, from string, opts ...SMTPOption) *SMTP {
	s := &SMTP{
		Host: host,
		Port: port,
		From: from,
		send: smtp.SendMail,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithCredentials sets PLAIN authentication.
func WithCredentials(username, password string) SMTPOption {
	return func(s *SMTP) {
		s.Username = username
		s.Password = password
	}
}

func (s *SMTP) SendEmail(ctx context.Context, address, subject, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(address+subject, "\r\n") {
		return fmt.Errorf("header injection in address or subject")
	}

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", address)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(message, "\n", "\r\n"))
	b.WriteString("\r\n")

	addr := net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
	if err := s.send(addr, auth, s.From, []string{address}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	return nil
}
