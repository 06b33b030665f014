// Package escalation holds the pure deadline and critical-condition rules used by
// the notification services.
package escalation

import (
	"time"

	"github.com/fleetops/maintenance-service/internal/domain"
)

// Bucket is the deadline classification of a ticket.
type Bucket string

const (
	BucketNone          Bucket = "none"
	BucketAboutToExpire Bucket = "aboutToExpire"
	BucketExpired       Bucket = "expired"
)

// AboutToExpirePercent is the elapsed-time percentage at which a ticket is flagged.
const AboutToExpirePercent = 75.0

// Classification is the derived progress state of one ticket. It is never persisted.
type Classification struct {
	ProgressPercentage float64 `json:"progress_percentage"`
	Bucket             Bucket  `json:"bucket"`
}

// ClassifiedTicket is a ticket annotated with its progress percentage.
type ClassifiedTicket struct {
	domain.MaintenanceTicket
	ProgressPercentage float64
}

// Result partitions classified tickets.
type Result struct {
	AboutToExpire []ClassifiedTicket
	Expired       []ClassifiedTicket
}

// All returns about-to-expire tickets followed by expired ones.
func (r Result) All() []ClassifiedTicket {
	out := make([]ClassifiedTicket, 0, len(r.AboutToExpire)+len(r.Expired))
	out = append(out, r.AboutToExpire...)
	return append(out, r.Expired...)
}

// Len is the number of flagged tickets.
func (r Result) Len() int {
	return len(r.AboutToExpire) + len(r.Expired)
}

// Progress computes the classification of a single ticket at now. The second
// return value is false when the ticket cannot be classified: it has no estimate
// or is already completed or cancelled.
//
// The percentage is not clamped. A target at or before creation reports 100.
// A ticket is expired only when now is strictly after the target.
func Progress(ticket *domain.MaintenanceTicket, now time.Time) (Classification, bool) {
	if ticket.Status.IsTerminal() {
		return Classification{}, false
	}
	estimate, ok := ticket.CurrentEstimate()
	if !ok {
		return Classification{}, false
	}

	target := estimate.Date
	totalMs := target.Sub(ticket.CreatedAt).Milliseconds()
	elapsedMs := now.Sub(ticket.CreatedAt).Milliseconds()

	percentage := 100.0
	if totalMs > 0 {
		percentage = float64(elapsedMs) * 100 / float64(totalMs)
	}

	switch {
	case now.After(target):
		return Classification{ProgressPercentage: percentage, Bucket: BucketExpired}, true
	case percentage >= AboutToExpirePercent:
		return Classification{ProgressPercentage: percentage, Bucket: BucketAboutToExpire}, true
	default:
		return Classification{ProgressPercentage: percentage, Bucket: BucketNone}, true
	}
}

// Classify buckets tickets into about-to-expire and expired at now. Input order is
// preserved within each bucket and the input slice is not modified.
func Classify(tickets []domain.MaintenanceTicket, now time.Time) Result {
	result := Result{
		AboutToExpire: []ClassifiedTicket{},
		Expired:       []ClassifiedTicket{},
	}
	for i := range tickets {
		c, ok := Progress(&tickets[i], now)
		if !ok {
			continue
		}
		item := ClassifiedTicket{MaintenanceTicket: tickets[i], ProgressPercentage: c.ProgressPercentage}
		switch c.Bucket {
		case BucketExpired:
			result.Expired = append(result.Expired, item)
		case BucketAboutToExpire:
			result.AboutToExpire = append(result.AboutToExpire, item)
		}
	}
	return result
}
