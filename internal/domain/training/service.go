package training

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"employeehub/internal/domain/audit"
	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/employees"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db"
	"employeehub/internal/platform/metrics"
	"employeehub/internal/platform/sentinel"
)

var tracer = otel.Tracer("employeehub/training")

type Service struct {
	store       StoreAPI
	employees   EmployeeStore
	resolver    *scope.Resolver
	audit       audit.Recorder
	metrics     *metrics.Metrics
	warningDays int
	now         func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDefaultWarningDays sets the company expiry warning window used when a
// course has none of its own.
func WithDefaultWarningDays(days int) Option {
	return func(s *Service) { s.warningDays = days }
}

func NewService(store StoreAPI, emps EmployeeStore, resolver *scope.Resolver, recorder audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store:       store,
		employees:   emps,
		resolver:    resolver,
		audit:       recorder,
		warningDays: 30,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	return compliance.Date(s.now())
}

func (s *Service) ListCourses(ctx context.Context) ([]Course, error) {
	return s.store.ListCourses(ctx)
}

func (s *Service) GetCourse(ctx context.Context, courseID string) (Course, error) {
	return s.store.GetCourse(ctx, courseID)
}

func validateCourse(in CourseInput) error {
	verr := &sentinel.ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "is required")
	}
	if in.ValidityMonths != nil && *in.ValidityMonths <= 0 {
		verr.Add("validityMonths", "must be positive or null for never expires")
	}
	if in.ExpiryWarningDays != nil && *in.ExpiryWarningDays < 0 {
		verr.Add("expiryWarningDays", "must not be negative")
	}
	return verr.OrNil()
}

func (s *Service) CreateCourse(ctx context.Context, caller scope.Caller, in CourseInput) (Course, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateCourse(in); err != nil {
		return Course{}, err
	}
	var evt audit.Event
	course, err := s.store.CreateCourse(ctx, in, func(q db.Querier, c Course) error {
		var err error
		evt, err = s.audit.Record(ctx, q, audit.Entry{
			TableName: "training_courses", RecordID: c.ID, Action: audit.ActionInsert, ActorUserID: caller.UserID, New: c,
		})
		return err
	})
	if err != nil {
		return Course{}, err
	}
	s.audit.Publish(ctx, evt)
	return course, nil
}

func (s *Service) UpdateCourse(ctx context.Context, caller scope.Caller, courseID string, in CourseInput) (Course, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateCourse(in); err != nil {
		return Course{}, err
	}
	var evt audit.Event
	course, err := s.store.UpdateCourse(ctx, courseID, in, func(q db.Querier, before, after Course) error {
		var err error
		evt, err = s.audit.Record(ctx, q, audit.Entry{
			TableName: "training_courses", RecordID: courseID, Action: audit.ActionUpdate, ActorUserID: caller.UserID, Old: before, New: after,
		})
		return err
	})
	if err != nil {
		return Course{}, err
	}
	s.audit.Publish(ctx, evt)
	return course, nil
}

// RecordCompletion stores a completion with its expiry derived from the
// course validity.
func (s *Service) RecordCompletion(ctx context.Context, caller scope.Caller, in RecordInput) (Record, error) {
	verr := &sentinel.ValidationError{}
	if in.EmployeeID == "" {
		verr.Add("employeeId", "is required")
	}
	if in.CourseID == "" {
		verr.Add("courseId", "is required")
	}
	if in.CompletionDate.IsZero() {
		verr.Add("completionDate", "is required")
	} else if compliance.Date(in.CompletionDate).After(s.today()) {
		verr.Add("completionDate", "must not be in the future")
	}
	if err := verr.OrNil(); err != nil {
		return Record{}, err
	}
	if err := s.resolver.Authorize(ctx, caller, in.EmployeeID); err != nil {
		return Record{}, err
	}
	if _, err := s.employees.Get(ctx, in.EmployeeID); err != nil {
		return Record{}, err
	}
	course, err := s.store.GetCourse(ctx, in.CourseID)
	if err != nil {
		return Record{}, err
	}

	completion := compliance.Date(in.CompletionDate)
	rec := Record{
		EmployeeID:     in.EmployeeID,
		CourseID:       in.CourseID,
		CompletionDate: completion,
		ExpiryDate:     compliance.TrainingExpiry(completion, course.ValidityMonths),
		CertificateURL: strings.TrimSpace(in.CertificateURL),
		Notes:          strings.TrimSpace(in.Notes),
	}
	var evt audit.Event
	saved, err := s.store.CreateRecord(ctx, rec, func(q db.Querier, r Record) error {
		var err error
		evt, err = s.audit.Record(ctx, q, audit.Entry{
			TableName: "training_records", RecordID: r.ID, Action: audit.ActionInsert, ActorUserID: caller.UserID, New: r,
		})
		return err
	})
	if err != nil {
		return Record{}, err
	}
	s.audit.Publish(ctx, evt)
	return saved, nil
}

func (s *Service) ListRecords(ctx context.Context, caller scope.Caller, employeeID string) ([]Record, error) {
	if err := s.resolver.Authorize(ctx, caller, employeeID); err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, employeeID)
}

// DeleteRecord removes a completion. Out-of-scope records are reported as
// forbidden, never as not found.
func (s *Service) DeleteRecord(ctx context.Context, caller scope.Caller, recordID string) error {
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		if caller.Scope != scope.ScopeAll && isNotFound(err) {
			return sentinel.ErrForbidden
		}
		return err
	}
	if err := s.resolver.Authorize(ctx, caller, rec.EmployeeID); err != nil {
		return err
	}
	var evt audit.Event
	err = s.store.DeleteRecord(ctx, recordID, func(q db.Querier, old Record) error {
		var err error
		evt, err = s.audit.Record(ctx, q, audit.Entry{
			TableName: "training_records", RecordID: recordID, Action: audit.ActionDelete, ActorUserID: caller.UserID, Old: old,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Publish(ctx, evt)
	return nil
}

// Status builds the employee x course matrix for everyone in the caller's
// scope, classifying each pair on the fly.
func (s *Service) Status(ctx context.Context, caller scope.Caller, q StatusQuery) ([]StatusRow, error) {
	filter, err := s.resolver.Filter(ctx, caller, q.EmployeeID)
	if err != nil {
		return nil, err
	}
	rows, err := s.matrix(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if q.matches(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

// Expiring lists rows that expire within days, expired ones included.
func (s *Service) Expiring(ctx context.Context, caller scope.Caller, days int) ([]StatusRow, error) {
	rows, err := s.Status(ctx, caller, StatusQuery{})
	if err != nil {
		return nil, err
	}
	out := []StatusRow{}
	for _, row := range rows {
		if row.DaysUntilExpiry != nil && *row.DaysUntilExpiry <= days {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DaysUntilExpiry < *out[j].DaysUntilExpiry })
	return out, nil
}

// Pending is the organisation-wide set of rows that warrant a notification.
// Rows without a training record cannot be deduplicated and are left out.
func (s *Service) Pending(ctx context.Context) ([]StatusRow, error) {
	rows, err := s.matrix(ctx, scope.EmployeeFilter{All: true})
	if err != nil {
		return nil, err
	}
	out := []StatusRow{}
	for _, row := range rows {
		if row.Status.NeedsNotification() && row.TrainingRecordID != nil {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Service) matrix(ctx context.Context, filter scope.EmployeeFilter) ([]StatusRow, error) {
	ctx, span := tracer.Start(ctx, "training.matrix")
	defer span.End()

	var (
		emps    []employees.Employee
		courses []Course
		records []Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		emps, err = s.employees.ListActive(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		courses, err = s.store.ListCourses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.store.LatestRecords(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load training matrix: %w", err)
	}

	latest := make(map[string]Record, len(records))
	for _, r := range records {
		latest[r.EmployeeID+"|"+r.CourseID] = r
	}

	today := s.today()
	out := make([]StatusRow, 0, len(emps)*len(courses))
	for _, e := range emps {
		for _, c := range courses {
			if !c.AppliesTo(e.Role) {
				continue
			}
			row := StatusRow{
				EmployeeID:     e.ID,
				EmployeeName:   e.FullName(),
				EmployeeEmail:  e.Email,
				Role:           e.Role,
				Department:     e.Department,
				CourseID:       c.ID,
				CourseName:     c.Name,
				Category:       c.Category,
				NotifyEmployee: c.NotifyEmployee,
				NotifyAdmin:    c.NotifyAdmin,
			}
			var completion, expiry *time.Time
			if r, ok := latest[e.ID+"|"+c.ID]; ok {
				id, done := r.ID, r.CompletionDate
				row.TrainingRecordID = &id
				completion = &done
				expiry = r.ExpiryDate
			}
			cls := compliance.ClassifyTraining(completion, expiry, today, s.warningFor(c))
			row.CompletionDate = completion
			row.ExpiryDate = expiry
			row.Status = cls.Status
			row.DaysUntilExpiry = cls.DaysUntilExpiry
			row.NoExpiry = cls.NoExpiry()
			s.metrics.ObserveClassification("training", string(cls.Status))
			out = append(out, row)
		}
	}
	span.SetAttributes(attribute.Int("training.rows", len(out)))
	return out, nil
}

func (s *Service) warningFor(c Course) int {
	if c.ExpiryWarningDays != nil {
		return *c.ExpiryWarningDays
	}
	return s.warningDays
}

// Summarize counts rows per status. The compliance rate is the share of
// rows that are valid, expiring soon or completed without expiry.
func Summarize(rows []StatusRow) Summary {
	var sum Summary
	for _, row := range rows {
		sum.Total++
		switch row.Status {
		case compliance.TrainingValid:
			sum.Valid++
		case compliance.TrainingExpiringSoon:
			sum.ExpiringSoon++
		case compliance.TrainingExpired:
			sum.Expired++
		case compliance.TrainingNotCompleted:
			sum.NotCompleted++
		case compliance.TrainingCompleted:
			sum.Completed++
		}
	}
	sum.ComplianceRate = Rate(sum.Valid+sum.ExpiringSoon+sum.Completed, sum.Total)
	return sum
}

// Rate is part/total as a percentage rounded to one decimal place.
func Rate(part, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1)
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, sentinel.ErrNotFound)
}
