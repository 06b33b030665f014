// Package notify renders report emails and delivers them to recipients.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is one outbound email. AttachmentPath is optional.
type Message struct {
	To             string
	Subject        string
	HTML           string
	AttachmentPath string
}

// Mailer delivers a single message and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// LogMailer only logs messages. It is used when no provider key is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.logger.Info("email not sent; mail provider disabled",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("attachment", msg.AttachmentPath))
	return "", nil
}
