package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/resend/resend-go/v2"
)

// ResendMailer sends through the Resend API.
type ResendMailer struct {
	client  *resend.Client
	from    string
	archive string
}

// NewResendMailer builds a mailer. archive, when set, receives a blind copy of every message.
func NewResendMailer(apiKey, from, archive string) (*ResendMailer, error) {
	if apiKey == "" {
		return nil, errors.New("resend api key is empty")
	}
	return &ResendMailer{
		client:  resend.NewClient(apiKey),
		from:    from,
		archive: archive,
	}, nil
}

// Send implements Mailer.
func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	req, err := m.request(msg)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return resp.Id, nil
}

func (m *ResendMailer) request(msg Message) (*resend.SendEmailRequest, error) {
	if msg.To == "" {
		return nil, errors.New("recipient is empty")
	}
	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if m.archive != "" && m.archive != msg.To {
		req.Bcc = []string{m.archive}
	}
	if msg.AttachmentPath != "" {
		content, err := os.ReadFile(msg.AttachmentPath)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		req.Attachments = []*resend.Attachment{{
			Content:  content,
			Filename: filepath.Base(msg.AttachmentPath),
		}}
	}
	return req, nil
}
