// Package mailer sends account emails
package mailer

import (
	"context"
	"log/slog"
	"time"
)

// Confirmation is an email asking a user to confirm their address
type Confirmation struct {
	To        string
	Username  string
	Link      string
	ExpiresAt time.Time
}

// Mailer delivers account emails
type Mailer interface {
	SendConfirmation(ctx context.Context, msg Confirmation) error
}

// LogMailer writes emails to the log instead of delivering them
type LogMailer struct {
	logger *slog.Logger
}

// Ensure LogMailer implements Mailer
var _ Mailer = (*LogMailer)(nil)

// NewLogMailer creates a LogMailer
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With(slog.String("component", "mailer"))}
}

func (m *LogMailer) SendConfirmation(ctx context.Context, msg Confirmation) error {
	m.logger.InfoContext(ctx, "confirmation email",
		slog.String("to", msg.To),
		slog.String("username", msg.Username),
		slog.String("link", msg.Link),
		slog.Time("expires_at", msg.ExpiresAt))
	return nil
}
