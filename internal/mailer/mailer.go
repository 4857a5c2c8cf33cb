package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"compositesvc/pkg/config"
	"compositesvc/pkg/metrics"
)

// Message is a fully resolved notification ready for transport. Immutable
// once built.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender submits one message to one recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender submits mail over a STARTTLS-secured, authenticated connection.
// Each Send opens and closes its own connection; failure isolation per
// message is preferred over throughput here.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.User,
		password: cfg.Password,
		from:     from,
	}
}

// Send submits one plain-text message. Any failure is retryable from the
// caller's point of view; credential validation happens at startup, not here.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	start := time.Now()
	err := s.submit(ctx, msg)
	if err != nil {
		metrics.RecordSMTPSubmitLatency("failed", time.Since(start))
		return err
	}
	metrics.RecordSMTPSubmitLatency("success", time.Since(start))
	return nil
}

// submitTimeout bounds the whole SMTP conversation when the caller's context
// carries no deadline, so a stalled server cannot wedge a worker.
const submitTimeout = 30 * time.Second

func (s *SMTPSender) submit(ctx context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(submitTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("smtp set deadline: %w", err)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := c.Mail(s.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(formatMessage(s.from, msg)); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close body: %w", err)
	}

	return c.Quit()
}

// formatMessage renders a minimal RFC 5322 plain-text message.
func formatMessage(from string, m Message) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		m.To,
		m.Subject,
		m.Body,
	))
}
