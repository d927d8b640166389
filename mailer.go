package membership

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// Notification is an outbound message
type Notification struct {
	ID        string
	Kind      string
	From      string
	To        string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// Mailer delivers a single notification
type Mailer interface {
	Send(ctx context.Context, n Notification) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, n Notification) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

// LogMailer writes notifications to the logger instead of sending them.
// Used in development.
type LogMailer struct {
	Logger Logger
}

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, n Notification) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("mail",
		"id", n.ID,
		"kind", n.Kind,
		"to", n.To,
		"subject", n.Subject,
		"body", n.Body,
	)
	return nil
}

// SMTPMailer sends HTML mail through an SMTP relay
type SMTPMailer struct {
	Addr string
	Auth smtp.Auth
}

// Send implements Mailer.
func (m SMTPMailer) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return smtp.SendMail(m.Addr, m.Auth, n.From, []string{n.To}, FormatMIMEMessage(n))
}

// FormatMIMEMessage renders n as a single part text/html message
func FormatMIMEMessage(n Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.From)
	fmt.Fprintf(&b, "To: %s\r\n", n.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", n.Subject)
	if n.ID != "" {
		fmt.Fprintf(&b, "Message-ID: <%s@membership>\r\n", n.ID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(n.Body)
	return []byte(b.String())
}
