package appraisal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"employeehub/internal/domain/audit"
	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/employees"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db"
	"employeehub/internal/platform/metrics"
	"employeehub/internal/platform/sentinel"
)

var tracer = otel.Tracer("employeehub/appraisal")

type Service struct {
	store          StoreAPI
	employees      EmployeeStore
	resolver       *scope.Resolver
	audit          audit.Recorder
	metrics        *metrics.Metrics
	reviewsBack    int
	reviewsForward int
	now            func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMatrixWindow sets how many completed and pending reviews a matrix row
// shows when the request does not say.
func WithMatrixWindow(back, forward int) Option {
	return func(s *Service) {
		s.reviewsBack = back
		s.reviewsForward = forward
	}
}

func NewService(store StoreAPI, emps EmployeeStore, resolver *scope.Resolver, recorder audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store:          store,
		employees:      emps,
		resolver:       resolver,
		audit:          recorder,
		reviewsBack:    2,
		reviewsForward: 2,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	return compliance.Date(s.now())
}

func (s *Service) decorate(m Milestone, today time.Time) Milestone {
	if def, ok := compliance.LookupMilestone(m.MilestoneType); ok {
		m.Label = def.Label
	} else {
		m.Label = string(m.MilestoneType)
	}
	cls := compliance.Classify(m.DueDate, m.CompletedDate, today)
	m.Status = cls.Status
	m.DaysUntilDue = cls.DaysUntilDue
	s.metrics.ObserveClassification("appraisal", string(cls.Status))
	return m
}

// GenerateMilestonesForEmployee inserts every scheduled milestone the
// employee does not have yet. Existing ones are skipped, so repeated calls
// create nothing new.
func (s *Service) GenerateMilestonesForEmployee(ctx context.Context, caller scope.Caller, employeeID string) ([]Milestone, error) {
	if err := s.resolver.Authorize(ctx, caller, employeeID); err != nil {
		return nil, err
	}
	emp, err := s.employees.Get(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if emp.StartDate.IsZero() {
		return nil, sentinel.NewValidation("startDate", "employee has no start date")
	}

	today := s.today()
	due := compliance.DueDatesForAppraisal(compliance.Date(emp.StartDate))
	created := []Milestone{}
	for _, def := range compliance.AppraisalSchedule {
		var evt audit.Event
		m, err := s.store.Create(ctx, Milestone{
			EmployeeID:    employeeID,
			MilestoneType: def.Type,
			DueDate:       due[def.Type],
		}, func(q db.Querier, m Milestone) error {
			var err error
			evt, err = s.audit.Record(ctx, q, audit.Entry{
				TableName: "appraisal_milestones", RecordID: m.ID, Action: audit.ActionInsert, ActorUserID: caller.UserID, New: m,
			})
			return err
		})
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", def.Type, err)
		}
		s.audit.Publish(ctx, evt)
		created = append(created, s.decorate(m, today))
	}
	slog.InfoContext(ctx, "appraisal milestones generated", "employee_id", employeeID, "created", len(created))
	return created, nil
}

// CreateMilestone records a single milestone by hand. A second milestone of
// the same type for the employee is a conflict.
func (s *Service) CreateMilestone(ctx context.Context, caller scope.Caller, in NewMilestone) (Milestone, error) {
	verr := &sentinel.ValidationError{}
	if strings.TrimSpace(in.EmployeeID) == "" {
		verr.Add("employeeId", "is required")
	}
	if _, ok := compliance.LookupMilestone(in.MilestoneType); !ok {
		verr.Add("milestoneType", "unknown milestone type")
	}
	if in.DueDate.IsZero() {
		verr.Add("dueDate", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return Milestone{}, err
	}
	if err := s.resolver.Authorize(ctx, caller, in.EmployeeID); err != nil {
		return Milestone{}, err
	}
	if _, err := s.employees.Get(ctx, in.EmployeeID); err != nil {
		return Milestone{}, err
	}

	m := Milestone{
		EmployeeID:    in.EmployeeID,
		MilestoneType: in.MilestoneType,
		DueDate:       compliance.Date(in.DueDate),
		ConductedByID: in.ConductedByID,
		Notes:         in.Notes,
	}
	if in.CompletedDate != nil {
		d := compliance.Date(*in.CompletedDate)
		m.CompletedDate = &d
	}
	var patch MilestonePatch
	if in.ConductedByID != nil {
		patch.ConductedByID = compliance.Value(*in.ConductedByID)
	}
	if err := s.validate(ctx, m, patch); err != nil {
		return Milestone{}, err
	}

	var evt audit.Event
	created, err := s.store.Create(ctx, m, func(q db.Querier, m Milestone) error {
		var err error
		evt, err = s.audit.Record(ctx, q, audit.Entry{
			TableName: "appraisal_milestones", RecordID: m.ID, Action: audit.ActionInsert, ActorUserID: caller.UserID, New: m,
		})
		return err
	})
	if err != nil {
		return Milestone{}, err
	}
	s.audit.Publish(ctx, evt)
	return s.decorate(created, s.today()), nil
}

func (s *Service) ListByEmployee(ctx context.Context, caller scope.Caller, employeeID string) ([]Milestone, error) {
	if err := s.resolver.Authorize(ctx, caller, employeeID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	today := s.today()
	for i := range rows {
		rows[i] = s.decorate(rows[i], today)
	}
	return rows, nil
}

func (s *Service) load(ctx context.Context, caller scope.Caller, milestoneID string) (Milestone, error) {
	m, err := s.store.Get(ctx, milestoneID)
	if err != nil {
		if caller.Scope != scope.ScopeAll && errors.Is(err, sentinel.ErrNotFound) {
			return Milestone{}, sentinel.ErrForbidden
		}
		return Milestone{}, err
	}
	if err := s.resolver.Authorize(ctx, caller, m.EmployeeID); err != nil {
		return Milestone{}, err
	}
	return m, nil
}

// UpdateMilestone applies a partial update. Clearing the completion date
// also clears the conductor unless one is given.
func (s *Service) UpdateMilestone(ctx context.Context, caller scope.Caller, milestoneID string, patch MilestonePatch) (Milestone, error) {
	if patch.Empty() {
		return Milestone{}, sentinel.NewValidation("body", "no fields to update")
	}
	if patch.DueDate.IsNull() {
		return Milestone{}, sentinel.NewValidation("dueDate", "cannot be cleared")
	}
	patch = patch.normalized()

	current, err := s.load(ctx, caller, milestoneID)
	if err != nil {
		return Milestone{}, err
	}
	if err := s.validate(ctx, patch.apply(current), patch); err != nil {
		return Milestone{}, err
	}

	var evt audit.Event
	updated, err := s.store.Update(ctx, milestoneID, patch, func(q db.Querier, before, after Milestone) error {
		var err error
		evt, err = s.audit.Record(ctx, q, audit.Entry{
			TableName: "appraisal_milestones", RecordID: milestoneID, Action: audit.ActionUpdate, ActorUserID: caller.UserID, Old: before, New: after,
		})
		return err
	})
	if err != nil {
		return Milestone{}, err
	}
	s.audit.Publish(ctx, evt)
	return s.decorate(updated, s.today()), nil
}

func (s *Service) validate(ctx context.Context, merged Milestone, patch MilestonePatch) error {
	verr := &sentinel.ValidationError{}
	if merged.CompletedDate != nil {
		completed := *merged.CompletedDate
		if completed.After(s.today()) {
			verr.Add("completedDate", "must not be in the future")
		} else if completed.Before(merged.DueDate.AddDate(-1, 0, 0)) {
			verr.Add("completedDate", "must not be more than a year before the due date")
		}
	}
	if id, ok := patch.ConductedByID.Get(); ok {
		if strings.TrimSpace(id) == "" {
			verr.Add("conductedById", "must not be empty")
		} else if _, err := s.employees.Get(ctx, id); err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				return err
			}
			verr.Add("conductedById", "unknown employee")
		}
	}
	return verr.OrNil()
}

func (s *Service) DeleteMilestone(ctx context.Context, caller scope.Caller, milestoneID string) error {
	if _, err := s.load(ctx, caller, milestoneID); err != nil {
		return err
	}
	var evt audit.Event
	err := s.store.Delete(ctx, milestoneID, func(q db.Querier, old Milestone) error {
		var err error
		evt, err = s.audit.Record(ctx, q, audit.Entry{
			TableName: "appraisal_milestones", RecordID: milestoneID, Action: audit.ActionDelete, ActorUserID: caller.UserID, Old: old,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Publish(ctx, evt)
	return nil
}

// Summary classifies every in-scope milestone as of today.
func (s *Service) Summary(ctx context.Context, caller scope.Caller) (Summary, error) {
	filter, err := s.resolver.Filter(ctx, caller, "")
	if err != nil {
		return Summary{}, err
	}
	milestones, err := s.store.List(ctx, filter)
	if err != nil {
		return Summary{}, fmt.Errorf("load appraisal summary: %w", err)
	}

	today := s.today()
	overdue := map[string]bool{}
	var out Summary
	for _, m := range milestones {
		out.Total++
		switch s.decorate(m, today).Status {
		case compliance.StatusCompleted:
			out.Completed++
		case compliance.StatusOverdue:
			out.Overdue++
			overdue[m.EmployeeID] = true
		case compliance.StatusDueSoon:
			out.DueSoon++
		default:
			out.NotYetDue++
		}
	}
	out.EmployeesWithOverdue = len(overdue)
	return out, nil
}

// Matrix shows, per in-scope employee, the last back completed reviews and
// the next forward pending ones. Missing slots are nil so every row has
// back+forward entries. Negative arguments fall back to the defaults.
func (s *Service) Matrix(ctx context.Context, caller scope.Caller, back, forward int) ([]MatrixRow, error) {
	ctx, span := tracer.Start(ctx, "appraisal.matrix")
	defer span.End()

	if back < 0 {
		back = s.reviewsBack
	}
	if forward < 0 {
		forward = s.reviewsForward
	}
	filter, err := s.resolver.Filter(ctx, caller, "")
	if err != nil {
		return nil, err
	}

	var (
		emps       []employees.Employee
		milestones []Milestone
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		emps, err = s.employees.ListActive(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		milestones, err = s.store.List(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load appraisal matrix: %w", err)
	}

	today := s.today()
	byEmployee := map[string][]Milestone{}
	for _, m := range milestones {
		byEmployee[m.EmployeeID] = append(byEmployee[m.EmployeeID], s.decorate(m, today))
	}

	out := make([]MatrixRow, 0, len(emps))
	for _, e := range emps {
		out = append(out, MatrixRow{
			EmployeeID:   e.ID,
			EmployeeName: e.FullName(),
			Role:         e.Role,
			Department:   e.Department,
			StartDate:    e.StartDate,
			Reviews:      window(byEmployee[e.ID], back, forward),
		})
	}
	return out, nil
}

// window picks the slots for one matrix row from milestones in any order.
func window(milestones []Milestone, back, forward int) []*Milestone {
	var completed, pending []Milestone
	for _, m := range milestones {
		if m.CompletedDate != nil {
			completed = append(completed, m)
		} else {
			pending = append(pending, m)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool { return completed[i].DueDate.Before(completed[j].DueDate) })
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].DueDate.Before(pending[j].DueDate) })

	if len(completed) > back {
		completed = completed[len(completed)-back:]
	}
	if len(pending) > forward {
		pending = pending[:forward]
	}

	out := make([]*Milestone, 0, back+forward)
	for i := len(completed); i < back; i++ {
		out = append(out, nil)
	}
	for i := range completed {
		out = append(out, &completed[i])
	}
	for i := range pending {
		out = append(out, &pending[i])
	}
	for i := len(pending); i < forward; i++ {
		out = append(out, nil)
	}
	return out
}
