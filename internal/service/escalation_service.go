package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/escalation"
	"github.com/fleetops/maintenance-service/internal/export"
	"github.com/fleetops/maintenance-service/internal/notify"
	"github.com/fleetops/maintenance-service/internal/observability"
	"github.com/fleetops/maintenance-service/internal/repository"
	apperrors "github.com/fleetops/maintenance-service/pkg/util/errorutil"
)

const (
	escalationLockKey    = "escalation:run:lock"
	escalationLastRunKey = "escalation:run:last"
	lastRunTTL           = 30 * 24 * time.Hour

	// ReportGlobal names the oversight report in run summaries.
	ReportGlobal = "global"
)

// RunLocker guards against overlapping batch runs.
type RunLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// RunStore keeps the latest run summary.
type RunStore interface {
	SaveJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	LoadJSON(ctx context.Context, key string, dst any) (bool, error)
}

// ReportSummary is the outcome of one deadline report.
type ReportSummary struct {
	Name          string                  `json:"name"`
	Department    domain.Department       `json:"department,omitempty"`
	AboutToExpire int                     `json:"about_to_expire"`
	Expired       int                     `json:"expired"`
	Recipients    int                     `json:"recipients"`
	Delivery      notify.Summary          `json:"delivery"`
	Skipped       bool                    `json:"skipped,omitempty"`
	SkipReason    string                  `json:"skip_reason,omitempty"`
	Results       []notify.DeliveryResult `json:"results,omitempty"`
}

// RunSummary is the outcome of one batch run.
type RunSummary struct {
	RunID            string          `json:"run_id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	TicketsEvaluated int             `json:"tickets_evaluated"`
	AboutToExpire    int             `json:"about_to_expire"`
	Expired          int             `json:"expired"`
	Partial          bool            `json:"partial"`
	Reports          []ReportSummary `json:"reports"`
}

// EscalationService runs the daily deadline classification and alerting batch.
type EscalationService struct {
	tickets      repository.TicketRepository
	recipients   repository.RecipientRepository
	mailer       notify.Mailer
	renderer     *notify.Renderer
	exporter     export.Generator
	resolver     escalation.DepartmentResolver
	locker       RunLocker
	store        RunStore
	metrics      *observability.Metrics
	logger       *zap.Logger
	concurrency  int
	batchTimeout time.Duration
	lockTTL      time.Duration
	now          func() time.Time
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	TicketRepo    repository.TicketRepository
	RecipientRepo repository.RecipientRepository
	Mailer        notify.Mailer
	Renderer      *notify.Renderer
	Exporter      export.Generator
	Resolver      escalation.DepartmentResolver
	Locker        RunLocker
	Store         RunStore
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Concurrency   int
	BatchTimeout  time.Duration
	LockTTL       time.Duration
	Clock         func() time.Time
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = escalation.NewFragmentResolver(escalation.DefaultDepartmentFragments())
	}
	lockTTL := deps.LockTTL
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &EscalationService{
		tickets:      deps.TicketRepo,
		recipients:   deps.RecipientRepo,
		mailer:       deps.Mailer,
		renderer:     deps.Renderer,
		exporter:     deps.Exporter,
		resolver:     resolver,
		locker:       deps.Locker,
		store:        deps.Store,
		metrics:      deps.Metrics,
		logger:       logger,
		concurrency:  deps.Concurrency,
		batchTimeout: deps.BatchTimeout,
		lockTTL:      lockTTL,
		now:          clock,
	}
}

// Run classifies in-process tickets and sends the global report followed by
// one report per department. Delivery failures are collected in the summary.
func (s *EscalationService) Run(ctx context.Context) (*RunSummary, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.batchTimeout)
		defer cancel()
	}

	now := s.now()
	summary := &RunSummary{RunID: uuid.NewString(), StartedAt: now}
	logger := s.logger.With(zap.String("run_id", summary.RunID))

	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusInProcess},
	})
	if err != nil {
		s.metrics.RecordEscalationRun("failed", s.now().Sub(now))
		return nil, err
	}

	result := escalation.Classify(tickets, now)
	summary.TicketsEvaluated = len(tickets)
	summary.AboutToExpire = len(result.AboutToExpire)
	summary.Expired = len(result.Expired)
	s.metrics.SetClassified(string(escalation.BucketAboutToExpire), summary.AboutToExpire)
	s.metrics.SetClassified(string(escalation.BucketExpired), summary.Expired)
	logger.Info("tickets classified",
		zap.Int("evaluated", summary.TicketsEvaluated),
		zap.Int("about_to_expire", summary.AboutToExpire),
		zap.Int("expired", summary.Expired))

	summary.Reports = append(summary.Reports, s.report(ctx, logger, "", result, now,
		repository.RecipientQuery{Group: domain.GroupDeadlineAlerts, Roles: []domain.RoleID{domain.RoleOversight}}))

	aboutByDept := escalation.PartitionByDepartment(result.AboutToExpire, s.resolver)
	expiredByDept := escalation.PartitionByDepartment(result.Expired, s.resolver)
	for _, dept := range domain.Departments {
		deptResult := escalation.Result{AboutToExpire: aboutByDept[dept], Expired: expiredByDept[dept]}
		if deptResult.Len() == 0 {
			continue
		}
		summary.Reports = append(summary.Reports, s.report(ctx, logger, dept, deptResult, now,
			repository.RecipientQuery{Group: domain.GroupDeadlineAlerts, Roles: []domain.RoleID{dept.HeadRole()}}))
	}

	summary.Partial = ctx.Err() != nil
	summary.FinishedAt = s.now()

	outcome := "ok"
	if summary.Partial {
		outcome = "partial"
	}
	s.metrics.RecordEscalationRun(outcome, summary.FinishedAt.Sub(summary.StartedAt))
	s.saveLastRun(context.WithoutCancel(ctx), logger, summary)
	logger.Info("escalation run finished", zap.String("outcome", outcome), zap.Int("reports", len(summary.Reports)))
	return summary, nil
}

// LastRun returns the summary stored by the latest run.
func (s *EscalationService) LastRun(ctx context.Context) (*RunSummary, error) {
	if s.store == nil {
		return nil, apperrors.NewNotFound("escalation run", nil)
	}
	var summary RunSummary
	found, err := s.store.LoadJSON(ctx, escalationLastRunKey, &summary)
	if err != nil {
		return nil, apperrors.NewUpstreamError("load last run", err)
	}
	if !found {
		return nil, apperrors.NewNotFound("escalation run", nil)
	}
	return &summary, nil
}

func (s *EscalationService) report(ctx context.Context, logger *zap.Logger, dept domain.Department, result escalation.Result, now time.Time, query repository.RecipientQuery) ReportSummary {
	name := ReportGlobal
	if dept != "" {
		name = string(dept)
	}
	rs := ReportSummary{
		Name:          name,
		Department:    dept,
		AboutToExpire: len(result.AboutToExpire),
		Expired:       len(result.Expired),
	}
	logger = logger.With(zap.String("report", name))
	if err := ctx.Err(); err != nil {
		rs.Skipped, rs.SkipReason = true, err.Error()
		logger.Warn("report skipped", zap.Error(err))
		return rs
	}

	recipients, err := s.recipients.ListRecipients(ctx, query)
	if err != nil {
		rs.Skipped, rs.SkipReason = true, err.Error()
		logger.Error("resolve recipients", zap.Error(err))
		return rs
	}
	emails := recipientEmails(recipients)
	rs.Recipients = len(emails)
	if len(emails) == 0 {
		rs.Skipped, rs.SkipReason = true, "no recipients"
		logger.Info("report has no recipients")
		return rs
	}

	msg, err := s.renderer.DeadlineReport(dept, rs.AboutToExpire, rs.Expired, now)
	if err != nil {
		rs.Skipped, rs.SkipReason = true, err.Error()
		logger.Error("render report", zap.Error(err))
		return rs
	}
	if s.exporter != nil {
		path, err := s.exporter.DeadlineWorkbook(result.All(), now)
		if err != nil {
			logger.Warn("deadline workbook failed, sending without attachment", zap.Error(err))
		} else {
			msg.AttachmentPath = path
			defer removeArtifact(logger, path)
		}
	}

	rs.Results = notify.Dispatch(ctx, s.mailer, emails, msg, s.concurrency)
	rs.Delivery = notify.Summarize(rs.Results)
	recordDeliveries(s.metrics, logger, name, rs.Results)
	return rs
}

func (s *EscalationService) acquire(ctx context.Context) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	token, acquired, err := s.locker.TryLock(ctx, escalationLockKey, s.lockTTL)
	if err != nil {
		s.logger.Warn("escalation lock unavailable, running unguarded", zap.Error(err))
		return func() {}, nil
	}
	if !acquired {
		return nil, apperrors.NewConflict("escalation run already in progress", nil)
	}
	return func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), escalationLockKey, token); err != nil {
			s.logger.Warn("release escalation lock", zap.Error(err))
		}
	}, nil
}

func (s *EscalationService) saveLastRun(ctx context.Context, logger *zap.Logger, summary *RunSummary) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveJSON(ctx, escalationLastRunKey, summary, lastRunTTL); err != nil {
		logger.Warn("store last run", zap.Error(err))
	}
}
