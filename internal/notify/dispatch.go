package notify

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DeliveryResult is the outcome for one recipient.
type DeliveryResult struct {
	Recipient string `json:"recipient"`
	Sent      bool   `json:"sent"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

// Dispatch sends msg to every recipient with at most limit sends in flight.
// A failed send never stops the others. Recipients not yet attempted when ctx
// is done are reported with the context error. Results follow recipient order.
func Dispatch(ctx context.Context, mailer Mailer, recipients []string, msg Message, limit int) []DeliveryResult {
	results := make([]DeliveryResult, len(recipients))
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, to := range recipients {
		i, to := i, to
		g.Go(func() error {
			results[i] = deliver(ctx, mailer, to, msg)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func deliver(ctx context.Context, mailer Mailer, to string, msg Message) DeliveryResult {
	res := DeliveryResult{Recipient: to}
	if err := ctx.Err(); err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}
	msg.To = to
	id, err := mailer.Send(ctx, msg)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}
	res.Sent = true
	res.MessageID = id
	return res
}

// Summary counts attempted, sent and failed deliveries.
type Summary struct {
	Attempted int      `json:"attempted"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	FailedTo  []string `json:"failed_recipients,omitempty"`
}

// Summarize folds results into counts.
func Summarize(results []DeliveryResult) Summary {
	s := Summary{Attempted: len(results)}
	for _, r := range results {
		if r.Sent {
			s.Sent++
			continue
		}
		s.Failed++
		s.FailedTo = append(s.FailedTo, r.Recipient)
	}
	return s
}
