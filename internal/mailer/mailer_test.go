package mailer

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"compositesvc/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMessage(t *testing.T) {
	msg := Message{
		To:      "a@b.com",
		Subject: "Welcome to Our Platform!",
		Body:    "Hi Ada,\n\nWelcome!",
	}

	out := string(formatMessage("noreply@example.com", msg))

	assert.True(t, strings.HasPrefix(out, "From: noreply@example.com\r\n"))
	assert.Contains(t, out, "To: a@b.com\r\n")
	assert.Contains(t, out, "Subject: Welcome to Our Platform!\r\n")
	assert.Contains(t, out, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.Contains(t, out, "\r\n\r\nHi Ada,\n\nWelcome!\r\n")
}

func TestSendFailsOnStalledServer(t *testing.T) {
	// A server that accepts the connection but never sends the SMTP banner
	// must not block the worker past the context deadline.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second) // stay silent
	}()

	addr := ln.Addr().(*net.TCPAddr)
	s := NewSMTPSender(config.SMTPConfig{
		Host:     addr.IP.String(),
		Port:     addr.Port,
		User:     "mailer@example.com",
		Password: "secret",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = s.Send(ctx, Message{To: "a@b.com", Subject: "s", Body: "b"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "deadline must cut off a stalled conversation")
}

func TestNewSMTPSenderDefaultsFromToUser(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		User:     "mailer@example.com",
		Password: "secret",
	})

	assert.Equal(t, "mailer@example.com", s.from)
}

func TestNewSMTPSenderKeepsExplicitFrom(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		User:     "mailer@example.com",
		Password: "secret",
		From:     "no-reply@example.com",
	})

	assert.Equal(t, "no-reply@example.com", s.from)
}
