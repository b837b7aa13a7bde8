package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"employeehub/internal/domain/audit"
	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db"
	"employeehub/internal/platform/metrics"
	"employeehub/internal/platform/redis"
	"employeehub/internal/platform/sentinel"
)

const tracerName = "employeehub/notifications"

const lockName = "notifications:dispatch"

type Service struct {
	store          StoreAPI
	source         PendingSource
	mailer         Mailer
	audit          audit.Recorder
	locker         Locker
	lockTTL        time.Duration
	jobs           JobRunner
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	from           string
	window         time.Duration
	notifyEmployee bool
	notifyAdmin    bool
	now            func() time.Time
}

type Option func(*Service)

func WithFrom(from string) Option {
	return func(s *Service) { s.from = from }
}

// WithDedupeWindow sets how long a sent notification suppresses a repeat to
// the same recipient.
func WithDedupeWindow(d time.Duration) Option {
	return func(s *Service) { s.window = d }
}

// WithRecipients applies the company-wide switches on top of each course's
// own notify flags.
func WithRecipients(employee, admin bool) Option {
	return func(s *Service) {
		s.notifyEmployee = employee
		s.notifyAdmin = admin
	}
}

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = l
		s.lockTTL = ttl
	}
}

func WithJobs(j JobRunner) Option {
	return func(s *Service) { s.jobs = j }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracerProvider overrides the process-wide provider installed at start.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store StoreAPI, source PendingSource, mailer Mailer, recorder audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store:          store,
		source:         source,
		mailer:         mailer,
		audit:          recorder,
		lockTTL:        5 * time.Minute,
		from:           "no-reply@example.com",
		window:         7 * 24 * time.Hour,
		notifyEmployee: true,
		notifyAdmin:    true,
		now:            time.Now,
		tracer:         otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectPending lists expiring and expired training that has a record to
// deduplicate against.
func (s *Service) SelectPending(ctx context.Context) ([]PendingItem, error) {
	rows, err := s.source.Pending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PendingItem, 0, len(rows))
	for _, row := range rows {
		if !row.Status.NeedsNotification() || row.TrainingRecordID == nil {
			continue
		}
		out = append(out, PendingItem{
			TrainingRecordID: *row.TrainingRecordID,
			EmployeeID:       row.EmployeeID,
			EmployeeName:     row.EmployeeName,
			EmployeeEmail:    row.EmployeeEmail,
			CourseID:         row.CourseID,
			CourseName:       row.CourseName,
			Status:           row.Status,
			ExpiryDate:       row.ExpiryDate,
			DaysUntilExpiry:  row.DaysUntilExpiry,
			NotifyEmployee:   row.NotifyEmployee,
			NotifyAdmin:      row.NotifyAdmin,
		})
	}
	return out, nil
}

// WasRecentlySent reports whether the same notification went to email for
// this record inside the dedupe window.
func (s *Service) WasRecentlySent(ctx context.Context, trainingRecordID, email, notificationType string) (bool, error) {
	return s.store.WasSentSince(ctx, trainingRecordID, email, notificationType, s.now().Add(-s.window))
}

// Dispatch sends every pending notification not already sent inside the
// window. Per-recipient failures land in Result.Errors and the batch always
// runs to the end. Only a held lock or a failed selection return an error.
func (s *Service) Dispatch(ctx context.Context, caller scope.Caller) (Result, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, lockName, s.lockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			s.metrics.IncDispatchRun("locked")
			return Result{}, fmt.Errorf("%w: a notification run is already in progress", sentinel.ErrConflict)
		}
		if err != nil {
			return Result{}, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	if s.jobs == nil {
		return s.dispatch(ctx)
	}
	var res Result
	_, err := s.jobs.RunNow(ctx, JobTrainingNotifications, caller.UserID, func(ctx context.Context) (any, error) {
		var err error
		res, err = s.dispatch(ctx)
		return res, err
	})
	return res, err
}

func (s *Service) dispatch(ctx context.Context) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "notifications.dispatch")
	defer span.End()

	res := Result{Errors: []string{}}
	items, err := s.SelectPending(ctx)
	if err != nil {
		s.metrics.IncDispatchRun("failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "select pending")
		return res, fmt.Errorf("select pending: %w", err)
	}

	var admins []string
	adminsLoaded := false
	for _, item := range items {
		recipients := []recipient{}
		if s.notifyEmployee && item.NotifyEmployee && strings.TrimSpace(item.EmployeeEmail) != "" {
			recipients = append(recipients, recipient{email: item.EmployeeEmail, kind: RecipientEmployee})
		}
		if s.notifyAdmin && item.NotifyAdmin {
			if !adminsLoaded {
				admins, err = s.store.AdminEmails(ctx)
				if err != nil {
					res.Errors = append(res.Errors, fmt.Sprintf("load admin recipients: %v", err))
				}
				adminsLoaded = true
			}
			for _, email := range admins {
				recipients = append(recipients, recipient{email: email, kind: RecipientAdmin})
			}
		}
		for _, r := range recipients {
			s.deliver(ctx, item, r, &res)
		}
	}

	s.metrics.IncDispatchRun("completed")
	span.SetAttributes(
		attribute.Int("notifications.sent", res.Sent),
		attribute.Int("notifications.skipped", res.Skipped),
		attribute.Int("notifications.errors", len(res.Errors)),
	)
	slog.InfoContext(ctx, "training notifications dispatched",
		"pending", len(items), "sent", res.Sent, "skipped", res.Skipped, "errors", len(res.Errors))
	return res, nil
}

type recipient struct {
	email string
	kind  string
}

func (s *Service) deliver(ctx context.Context, item PendingItem, r recipient, res *Result) {
	ntype := item.NotificationType()
	recent, err := s.WasRecentlySent(ctx, item.TrainingRecordID, r.email, ntype)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("dedupe check for %s: %v", r.email, err))
		s.metrics.IncNotification("failed", ntype)
		return
	}
	if recent {
		res.Skipped++
		s.metrics.IncNotification("skipped", ntype)
		return
	}

	subject, body := Compose(item)
	if err := s.mailer.Send(ctx, s.from, r.email, subject, body); err != nil {
		err = fmt.Errorf("%w: %v", sentinel.ErrTransport, err)
		res.Errors = append(res.Errors, fmt.Sprintf("send to %s: %v", r.email, err))
		s.metrics.IncNotification("failed", ntype)
		slog.WarnContext(ctx, "notification send failed", "recipient_type", r.kind, "training_record_id", item.TrainingRecordID, "err", err)
		return
	}

	err = s.store.InsertLog(ctx, LogEntry{
		TrainingRecordID: item.TrainingRecordID,
		EmployeeID:       item.EmployeeID,
		CourseID:         item.CourseID,
		RecipientEmail:   r.email,
		RecipientType:    r.kind,
		NotificationType: ntype,
		SentAt:           s.now(),
		DaysUntilExpiry:  item.DaysUntilExpiry,
	})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("log notification to %s: %v", r.email, err))
	}
	res.Sent++
	s.metrics.IncNotification("sent", ntype)
}

// Compose renders the subject and body for one pending item.
func Compose(item PendingItem) (string, string) {
	expiry := ""
	if item.ExpiryDate != nil {
		expiry = item.ExpiryDate.Format(dateLayout)
	}
	if item.Status == compliance.TrainingExpired {
		return fmt.Sprintf("EXPIRED: %s - %s", item.EmployeeName, item.CourseName),
			fmt.Sprintf("%s's %s training expired on %s. Immediate action required.", item.EmployeeName, item.CourseName, expiry)
	}
	days := 0
	if item.DaysUntilExpiry != nil {
		days = *item.DaysUntilExpiry
	}
	return fmt.Sprintf("Expiring Soon: %s - %s", item.EmployeeName, item.CourseName),
		fmt.Sprintf("%s's %s training expires in %d days (on %s). Please arrange renewal.", item.EmployeeName, item.CourseName, days, expiry)
}

func (s *Service) ListLog(ctx context.Context, filter LogFilter) ([]LogEntry, int, error) {
	if filter.Type != "" && filter.Type != TypeExpired && filter.Type != TypeExpiryWarning {
		return nil, 0, sentinel.NewValidation("type", "must be expired or expiry_warning")
	}
	return s.store.ListLog(ctx, filter)
}

// ClearLog empties the notification log, which re-arms every dedupe window.
func (s *Service) ClearLog(ctx context.Context, caller scope.Caller) (int64, error) {
	var evt audit.Event
	deleted, err := s.store.ClearLog(ctx, func(q db.Querier, deleted int64) error {
		var err error
		evt, err = s.audit.Record(ctx, q, audit.Entry{
			TableName:   "notification_log",
			RecordID:    "*",
			Action:      audit.ActionDelete,
			ActorUserID: caller.UserID,
			Old:         map[string]int64{"deleted": deleted},
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	s.audit.Publish(ctx, evt)
	return deleted, nil
}

// ListPending previews what Dispatch would consider without sending.
func (s *Service) ListPending(ctx context.Context) ([]PendingItem, error) {
	return s.SelectPending(ctx)
}
