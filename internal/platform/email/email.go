package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"employeehub/internal/platform/config"
)

const dialTimeout = 10 * time.Second

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// noopMailer reports success without sending so a dry run still fills the
// notification log.
type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, from, to, subject, body string) error {
	slog.DebugContext(ctx, "email disabled, message dropped", "to", to, "subject", subject)
	return nil
}

type smtpSettings struct {
	host     string
	port     int
	user     string
	password string
	startTLS bool
}

type smtpMailer struct {
	settings smtpSettings
}

// New returns the SMTP mailer when email is enabled and a host is set, and
// the no-op mailer otherwise.
func New(cfg config.Config) Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopMailer{}
	}
	return &smtpMailer{settings: smtpSettings{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		startTLS: cfg.SMTPUseTLS,
	}}
}

func (m *smtpMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("empty recipient")
	}
	if strings.ContainsAny(to+subject, "\r\n") {
		return errors.New("header injection in recipient or subject")
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(m.settings.host, strconv.Itoa(m.settings.port)))
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.settings.host)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close()

	if err := m.session(client, from, to, buildMessage(from, to, subject, body)); err != nil {
		return err
	}
	return client.Quit()
}

func (m *smtpMailer) session(c *smtp.Client, from, to string, msg []byte) error {
	if m.settings.startTLS {
		if err := c.StartTLS(&tls.Config{ServerName: m.settings.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.settings.user != "" {
		if err := c.Auth(smtp.PlainAuth("", m.settings.user, m.settings.password, m.settings.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	header := func(k, v string) { b.WriteString(k + ": " + v + "\r\n") }
	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", time.Now().UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}
