package service

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/escalation"
	"github.com/fleetops/maintenance-service/internal/export"
	"github.com/fleetops/maintenance-service/internal/notify"
	"github.com/fleetops/maintenance-service/internal/observability"
	"github.com/fleetops/maintenance-service/internal/repository"
)

const reportCritical = "critical"

// CriticalSummary describes one evaluation of an installation.
type CriticalSummary struct {
	InstallationID   int64                   `json:"installation_id"`
	InstallationName string                  `json:"installation_name"`
	OpenTickets      int                     `json:"open_tickets"`
	Conditions       []string                `json:"conditions"`
	Recipients       int                     `json:"recipients"`
	Delivery         notify.Summary          `json:"delivery"`
	Results          []notify.DeliveryResult `json:"results,omitempty"`
}

// CriticalEvaluator evaluates an installation's open backlog.
type CriticalEvaluator interface {
	Evaluate(ctx context.Context, installationID int64) (*CriticalSummary, error)
}

// CriticalConditionService alerts subscribers when an installation's open
// backlog crosses a fault-count threshold.
type CriticalConditionService struct {
	installations repository.InstallationRepository
	tickets       repository.TicketRepository
	recipients    repository.RecipientRepository
	mailer        notify.Mailer
	renderer      *notify.Renderer
	exporter      export.Generator
	metrics       *observability.Metrics
	logger        *zap.Logger
	concurrency   int
	now           func() time.Time
}

// CriticalDependencies bundles collaborators for the critical condition service.
type CriticalDependencies struct {
	InstallationRepo repository.InstallationRepository
	TicketRepo       repository.TicketRepository
	RecipientRepo    repository.RecipientRepository
	Mailer           notify.Mailer
	Renderer         *notify.Renderer
	Exporter         export.Generator
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Concurrency      int
	Clock            func() time.Time
}

// NewCriticalConditionService constructs the service.
func NewCriticalConditionService(deps CriticalDependencies) *CriticalConditionService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CriticalConditionService{
		installations: deps.InstallationRepo,
		tickets:       deps.TicketRepo,
		recipients:    deps.RecipientRepo,
		mailer:        deps.Mailer,
		renderer:      deps.Renderer,
		exporter:      deps.Exporter,
		metrics:       deps.Metrics,
		logger:        logger,
		concurrency:   deps.Concurrency,
		now:           clock,
	}
}

// Evaluate checks the installation's open tickets and alerts group 2 when any
// threshold is breached. An unknown installation stops before anyone is contacted.
func (s *CriticalConditionService) Evaluate(ctx context.Context, installationID int64) (*CriticalSummary, error) {
	inst, err := s.installations.GetByID(ctx, installationID)
	if err != nil {
		return nil, notFound(err, "installation", installationID)
	}
	open, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		InstallationID: &inst.ID,
		Statuses:       domain.OpenStatuses,
	})
	if err != nil {
		return nil, err
	}

	report := escalation.EvaluateCriticalConditions(open)
	summary := &CriticalSummary{
		InstallationID:   inst.ID,
		InstallationName: inst.Name,
		OpenTickets:      len(open),
		Conditions:       report.Conditions,
	}
	if !report.Breached() {
		return summary, nil
	}
	s.recordCategories(report)

	recipients, err := s.recipients.ListRecipients(ctx, repository.RecipientQuery{Group: domain.GroupCriticalAlerts})
	if err != nil {
		return nil, err
	}
	emails := recipientEmails(recipients)
	summary.Recipients = len(emails)
	if len(emails) == 0 {
		s.logger.Info("critical conditions without recipients",
			zap.Int64("installation_id", inst.ID),
			zap.Strings("conditions", report.Conditions))
		return summary, nil
	}

	now := s.now()
	msg, err := s.renderer.CriticalReport(inst.Name, report.Conditions, now)
	if err != nil {
		return nil, err
	}
	if s.exporter != nil {
		path, err := s.exporter.CriticalWorkbook(inst.Name, report, now)
		if err != nil {
			s.logger.Warn("critical workbook failed, sending without attachment",
				zap.Int64("installation_id", inst.ID), zap.Error(err))
		} else {
			msg.AttachmentPath = path
			defer removeArtifact(s.logger, path)
		}
	}

	results := notify.Dispatch(ctx, s.mailer, emails, msg, s.concurrency)
	recordDeliveries(s.metrics, s.logger, reportCritical, results)
	summary.Results = results
	summary.Delivery = notify.Summarize(results)
	return summary, nil
}

func (s *CriticalConditionService) recordCategories(report escalation.CriticalReport) {
	if len(report.OrdinaryFaults) > 0 {
		s.metrics.RecordCriticalCondition(string(domain.FaultTypeOrdinary))
	}
	if len(report.EquipmentFaults) > 0 {
		s.metrics.RecordCriticalCondition(string(domain.FaultTypeEquipment))
	}
	if len(report.OperationalFaults) > 0 {
		s.metrics.RecordCriticalCondition(string(domain.FaultTypeOperational))
	}
}

// recipientEmails returns one address per mailbox, ignoring case and blanks.
// The first spelling seen is kept.
func recipientEmails(recipients []domain.Recipient) []string {
	emails := make([]string, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		email := strings.TrimSpace(r.Email)
		key := strings.ToLower(email)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		emails = append(emails, email)
	}
	return emails
}

func recordDeliveries(metrics *observability.Metrics, logger *zap.Logger, report string, results []notify.DeliveryResult) {
	for _, res := range results {
		metrics.RecordDelivery(report, res.Sent)
		if !res.Sent {
			logger.Warn("notification delivery failed",
				zap.String("report", report),
				zap.String("recipient", res.Recipient),
				zap.String("error", res.Error))
		}
	}
}

func removeArtifact(logger *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("remove export artifact", zap.String("path", path), zap.Error(err))
	}
}
