package supervision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

var tracer = otel.Tracer("employeehub/supervision")

type Service struct {
	store         StoreAPI
	employees     EmployeeStore
	resolver      *scope.Resolver
	audit         audit.Recorder
	metrics       *metrics.Metrics
	dueSoonDays   int
	monthsBack    int
	monthsForward int
	now           func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithDueSoonDays(days int) Option {
	return func(s *Service) { s.dueSoonDays = days }
}

// WithWindow sets the default matrix window around the current month.
func WithWindow(back, forward int) Option {
	return func(s *Service) {
		s.monthsBack = back
		s.monthsForward = forward
	}
}

func NewService(store StoreAPI, emps EmployeeStore, resolver *scope.Resolver, recorder audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store:         store,
		employees:     emps,
		resolver:      resolver,
		audit:         recorder,
		dueSoonDays:   7,
		monthsBack:    9,
		monthsForward: 3,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	return compliance.Date(s.now())
}

func (s *Service) currentPeriod() compliance.Period {
	return compliance.PeriodOf(s.today())
}

// forbidIfHidden turns a not-found into forbidden for callers without the
// all scope, so lookups never reveal rows outside their reach.
func forbidIfHidden(caller scope.Caller, err error) error {
	if caller.Scope != scope.ScopeAll && errors.Is(err, sentinel.ErrNotFound) {
		return sentinel.ErrForbidden
	}
	return err
}

func (s *Service) record(ctx context.Context, q db.Querier, caller scope.Caller, table, id, action string, oldData, newData any) (audit.Event, error) {
	return s.audit.Record(ctx, q, audit.Entry{
		TableName:   table,
		RecordID:    id,
		Action:      action,
		ActorUserID: caller.UserID,
		Old:         oldData,
		New:         newData,
	})
}

func (s *Service) CreateRecord(ctx context.Context, caller scope.Caller, in RecordInput) (Record, error) {
	rec, err := s.prepareRecord(ctx, caller, in)
	if err != nil {
		return Record{}, err
	}
	var evt audit.Event
	saved, err := s.store.CreateRecord(ctx, rec, func(q db.Querier, r Record) error {
		var err error
		evt, err = s.record(ctx, q, caller, "supervision_records", r.ID, audit.ActionInsert, nil, r)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	s.audit.Publish(ctx, evt)
	return saved, nil
}

func (s *Service) UpdateRecord(ctx context.Context, caller scope.Caller, recordID string, in RecordInput) (Record, error) {
	existing, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return Record{}, forbidIfHidden(caller, err)
	}
	in.EmployeeID = existing.EmployeeID
	rec, err := s.prepareRecord(ctx, caller, in)
	if err != nil {
		return Record{}, err
	}
	rec.ID = recordID
	var evt audit.Event
	saved, err := s.store.UpdateRecord(ctx, rec, func(q db.Querier, before, after Record) error {
		var err error
		evt, err = s.record(ctx, q, caller, "supervision_records", recordID, audit.ActionUpdate, before, after)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	s.audit.Publish(ctx, evt)
	return saved, nil
}

// prepareRecord validates input, checks scope and snapshots the required
// count in force for the record's month.
func (s *Service) prepareRecord(ctx context.Context, caller scope.Caller, in RecordInput) (Record, error) {
	if in.ConductedByID == "" {
		in.ConductedByID = caller.EmployeeID
	}
	verr := &sentinel.ValidationError{}
	if in.EmployeeID == "" {
		verr.Add("employeeId", "is required")
	}
	if in.ConductedByID == "" {
		verr.Add("conductedById", "is required")
	}
	if in.SupervisionDate.IsZero() {
		verr.Add("supervisionDate", "is required")
	} else if compliance.Date(in.SupervisionDate).After(s.today()) {
		verr.Add("supervisionDate", "must not be in the future")
	}
	if err := verr.OrNil(); err != nil {
		return Record{}, err
	}
	if err := s.resolver.Authorize(ctx, caller, in.EmployeeID); err != nil {
		return Record{}, err
	}
	if _, err := s.employees.Get(ctx, in.ConductedByID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Record{}, sentinel.NewValidation("conductedById", "unknown employee")
		}
		return Record{}, err
	}

	date := compliance.Date(in.SupervisionDate)
	period := in.Period
	if period.IsZero() {
		period = compliance.PeriodOf(date)
	}
	required, err := s.store.RequiredCountFor(ctx, in.EmployeeID, period)
	if err != nil {
		return Record{}, fmt.Errorf("required count: %w", err)
	}
	completed := true
	if in.IsCompleted != nil {
		completed = *in.IsCompleted
	}
	return Record{
		EmployeeID:      in.EmployeeID,
		ConductedByID:   in.ConductedByID,
		SupervisionDate: date,
		Period:          period,
		Notes:           strings.TrimSpace(in.Notes),
		IsCompleted:     completed,
		RequiredCount:   required,
	}, nil
}

func (s *Service) ListRecords(ctx context.Context, caller scope.Caller, employeeID string) ([]Record, error) {
	filter, err := s.resolver.Filter(ctx, caller, employeeID)
	if err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, RecordFilter{Employees: filter})
}

// ListBySupervisor returns the records a supervisor conducted, limited to
// supervisees in the caller's scope.
func (s *Service) ListBySupervisor(ctx context.Context, caller scope.Caller, supervisorID string) ([]Record, error) {
	if supervisorID == "" {
		return nil, sentinel.NewValidation("supervisorId", "is required")
	}
	filter, err := s.resolver.Filter(ctx, caller, "")
	if err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, RecordFilter{Employees: filter, ConductedByID: supervisorID})
}

func (s *Service) DeleteRecord(ctx context.Context, caller scope.Caller, recordID string) error {
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return forbidIfHidden(caller, err)
	}
	if err := s.resolver.Authorize(ctx, caller, rec.EmployeeID); err != nil {
		return err
	}
	var evt audit.Event
	err = s.store.DeleteRecord(ctx, recordID, func(q db.Querier, old Record) error {
		var err error
		evt, err = s.record(ctx, q, caller, "supervision_records", recordID, audit.ActionDelete, old, nil)
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Publish(ctx, evt)
	return nil
}

// RequiredCountFor resolves the requirement in force for one employee month.
func (s *Service) RequiredCountFor(ctx context.Context, caller scope.Caller, employeeID string, month compliance.Period) (int, error) {
	if err := s.resolver.Authorize(ctx, caller, employeeID); err != nil {
		return 0, err
	}
	return s.store.RequiredCountFor(ctx, employeeID, month)
}

func (s *Service) ListRequirements(ctx context.Context, caller scope.Caller, employeeID string) ([]RequirementVersion, error) {
	if err := s.resolver.Authorize(ctx, caller, employeeID); err != nil {
		return nil, err
	}
	return s.store.ListRequirements(ctx, scope.EmployeeFilter{IDs: []string{employeeID}})
}

func (s *Service) CreateRequirement(ctx context.Context, caller scope.Caller, employeeID string, effectiveFrom time.Time, count int) (RequirementVersion, error) {
	verr := &sentinel.ValidationError{}
	if employeeID == "" {
		verr.Add("employeeId", "is required")
	}
	if effectiveFrom.IsZero() {
		verr.Add("effectiveFrom", "is required")
	}
	if count < 1 {
		verr.Add("requiredCount", "must be at least 1")
	}
	if err := verr.OrNil(); err != nil {
		return RequirementVersion{}, err
	}
	if err := s.resolver.Authorize(ctx, caller, employeeID); err != nil {
		return RequirementVersion{}, err
	}
	if _, err := s.employees.Get(ctx, employeeID); err != nil {
		return RequirementVersion{}, forbidIfHidden(caller, err)
	}

	v := RequirementVersion{EmployeeID: employeeID, EffectiveFrom: compliance.Date(effectiveFrom), RequiredCount: count}
	var evt audit.Event
	saved, err := s.store.CreateRequirement(ctx, v, func(q db.Querier, saved RequirementVersion, resnapshotted int64) error {
		var err error
		evt, err = s.record(ctx, q, caller, "supervision_requirements", saved.ID, audit.ActionInsert, nil, map[string]any{
			"requirement":          saved,
			"recordsResnapshotted": resnapshotted,
		})
		return err
	})
	if err != nil {
		return RequirementVersion{}, err
	}
	s.audit.Publish(ctx, evt)
	return saved, nil
}

func (s *Service) loadRequirement(ctx context.Context, caller scope.Caller, requirementID string) (RequirementVersion, error) {
	v, err := s.store.GetRequirement(ctx, requirementID)
	if err != nil {
		return RequirementVersion{}, forbidIfHidden(caller, err)
	}
	if err := s.resolver.Authorize(ctx, caller, v.EmployeeID); err != nil {
		return RequirementVersion{}, err
	}
	return v, nil
}

// UpdateRequirement changes a version's effective date and count and
// re-snapshots the records whose governing version may have moved.
func (s *Service) UpdateRequirement(ctx context.Context, caller scope.Caller, requirementID string, effectiveFrom time.Time, count int) (RequirementVersion, error) {
	verr := &sentinel.ValidationError{}
	if effectiveFrom.IsZero() {
		verr.Add("effectiveFrom", "is required")
	}
	if count < 1 {
		verr.Add("requiredCount", "must be at least 1")
	}
	if err := verr.OrNil(); err != nil {
		return RequirementVersion{}, err
	}
	current, err := s.loadRequirement(ctx, caller, requirementID)
	if err != nil {
		return RequirementVersion{}, err
	}
	current.EffectiveFrom = compliance.Date(effectiveFrom)
	current.RequiredCount = count

	var evt audit.Event
	saved, err := s.store.UpdateRequirement(ctx, current, func(q db.Querier, before, after RequirementVersion, resnapshotted int64) error {
		var err error
		evt, err = s.record(ctx, q, caller, "supervision_requirements", requirementID, audit.ActionUpdate, before, map[string]any{
			"requirement":          after,
			"recordsResnapshotted": resnapshotted,
		})
		return err
	})
	if err != nil {
		return RequirementVersion{}, err
	}
	s.audit.Publish(ctx, evt)
	return saved, nil
}

// DeleteRequirement removes a version. The months it governed fall back to
// the previous version or the default.
func (s *Service) DeleteRequirement(ctx context.Context, caller scope.Caller, requirementID string) error {
	if _, err := s.loadRequirement(ctx, caller, requirementID); err != nil {
		return err
	}
	var evt audit.Event
	err := s.store.DeleteRequirement(ctx, requirementID, func(q db.Querier, old RequirementVersion, resnapshotted int64) error {
		var err error
		evt, err = s.record(ctx, q, caller, "supervision_requirements", requirementID, audit.ActionDelete, old, map[string]any{
			"recordsResnapshotted": resnapshotted,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Publish(ctx, evt)
	return nil
}

// UpdateRequiredCount overrides the snapshot on one month's records and
// returns how many were changed.
func (s *Service) UpdateRequiredCount(ctx context.Context, caller scope.Caller, employeeID string, month compliance.Period, count int) (int64, error) {
	if count < 1 {
		return 0, sentinel.NewValidation("requiredCount", "must be at least 1")
	}
	if month.IsZero() {
		return 0, sentinel.NewValidation("period", "is required")
	}
	if err := s.resolver.Authorize(ctx, caller, employeeID); err != nil {
		return 0, err
	}
	var evt audit.Event
	affected, err := s.store.UpdateRequiredCount(ctx, employeeID, month, count, func(q db.Querier, affected int64) error {
		var err error
		evt, err = s.record(ctx, q, caller, "supervision_records", employeeID, audit.ActionUpdate, nil, map[string]any{
			"employeeId":    employeeID,
			"period":        month,
			"requiredCount": count,
			"affected":      affected,
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.audit.Publish(ctx, evt)
	}
	return affected, nil
}

// Status classifies every in-scope employee against their last supervision.
func (s *Service) Status(ctx context.Context, caller scope.Caller, employeeID string) ([]StatusRow, error) {
	ctx, span := tracer.Start(ctx, "supervision.status")
	defer span.End()

	filter, err := s.resolver.Filter(ctx, caller, employeeID)
	if err != nil {
		return nil, err
	}
	current := s.currentPeriod()

	var (
		emps       []employees.Employee
		last       map[string]time.Time
		exceptions []Exception
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		emps, err = s.employees.ListActive(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		last, err = s.store.LastSupervisionDates(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		exceptions, err = s.store.ListExceptions(gctx, exceptionFilterFor(filter, current, current))
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load supervision status: %w", err)
	}

	exempt := make(map[string]ExceptionType, len(exceptions))
	for _, x := range exceptions {
		exempt[x.EmployeeID] = x.ExceptionType
	}

	today := s.today()
	out := make([]StatusRow, 0, len(emps))
	for _, e := range emps {
		row := StatusRow{
			EmployeeID:      e.ID,
			EmployeeName:    e.FullName(),
			Email:           e.Email,
			Role:            e.Role,
			Department:      e.Department,
			ReportsTo:       e.ReportsTo,
			FrequencyMonths: e.SupervisionFrequencyMonths,
		}
		var lastDate *time.Time
		if d, ok := last[e.ID]; ok {
			d = compliance.Date(d)
			lastDate = &d
		}
		xt, isExempt := exempt[e.ID]
		if isExempt {
			t := xt
			row.ExceptionType = &t
		}
		cls := compliance.ClassifySupervision(lastDate, compliance.SupervisionRule{
			FrequencyMonths: e.SupervisionFrequencyMonths,
			DueSoonDays:     s.dueSoonDays,
		}, today, isExempt)
		row.LastSupervisionDate = lastDate
		row.Status = cls.Status
		row.DaysSinceLast = cls.DaysSinceLast
		row.DaysUntilDue = cls.DaysUntilDue
		s.metrics.ObserveClassification("supervision", string(cls.Status))
		out = append(out, row)
	}
	span.SetAttributes(attribute.Int("supervision.rows", len(out)))
	return out, nil
}

func Summarize(rows []StatusRow) Summary {
	var sum Summary
	for _, row := range rows {
		sum.Total++
		switch row.Status {
		case compliance.SupervisionNever:
			sum.Never++
		case compliance.SupervisionOK:
			sum.OK++
		case compliance.SupervisionDueSoon:
			sum.DueSoon++
		case compliance.SupervisionOverdue:
			sum.Overdue++
		case compliance.SupervisionExempt:
			sum.Exempt++
		}
	}
	return sum
}

// MaxMatrixMonths bounds the span of one matrix request.
const MaxMatrixMonths = 36

// Matrix grades each in-scope employee month by month. Zero bounds in the
// query fall back to the configured window around the current month.
func (s *Service) Matrix(ctx context.Context, caller scope.Caller, q MatrixQuery) (Matrix, error) {
	ctx, span := tracer.Start(ctx, "supervision.matrix")
	defer span.End()

	current := s.currentPeriod()
	from, to := q.From, q.To
	if from.IsZero() {
		from = current.AddMonths(-s.monthsBack)
	}
	if to.IsZero() {
		to = current.AddMonths(s.monthsForward)
	}
	if to.Before(from) {
		return Matrix{}, sentinel.NewValidation("to", "must not be before from")
	}
	if compliance.MonthsBetween(from, to) >= MaxMatrixMonths {
		return Matrix{}, sentinel.NewValidation("to", fmt.Sprintf("window must not exceed %d months", MaxMatrixMonths))
	}
	periods := compliance.PeriodRange(from, to)

	filter, err := s.resolver.Filter(ctx, caller, q.EmployeeID)
	if err != nil {
		return Matrix{}, err
	}

	var (
		emps       []employees.Employee
		records    []Record
		exceptions []Exception
		versions   []RequirementVersion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		emps, err = s.employees.ListActive(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.store.ListRecords(gctx, RecordFilter{Employees: filter, From: from, To: to})
		return err
	})
	g.Go(func() error {
		var err error
		exceptions, err = s.store.ListExceptions(gctx, exceptionFilterFor(filter, from, to))
		return err
	})
	g.Go(func() error {
		var err error
		versions, err = s.store.ListRequirements(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Matrix{}, fmt.Errorf("load supervision matrix: %w", err)
	}

	type key struct {
		employeeID string
		period     compliance.Period
	}
	completed := map[key]int{}
	snapshot := map[key]int{}
	for _, r := range records {
		k := key{r.EmployeeID, r.Period}
		if r.IsCompleted {
			completed[k]++
		}
		if r.RequiredCount > snapshot[k] {
			snapshot[k] = r.RequiredCount
		}
	}
	exceptionAt := map[key]ExceptionType{}
	for _, x := range exceptions {
		exceptionAt[key{x.EmployeeID, x.Period}] = x.ExceptionType
	}
	versionsBy := map[string][]RequirementVersion{}
	for _, v := range versions {
		versionsBy[v.EmployeeID] = append(versionsBy[v.EmployeeID], v)
	}

	m := Matrix{Periods: periods, Rows: make([]MatrixRow, 0, len(emps))}
	for _, e := range emps {
		row := MatrixRow{EmployeeID: e.ID, EmployeeName: e.FullName(), StartDate: e.StartDate, Cells: make([]MatrixCell, 0, len(periods))}
		for _, p := range periods {
			k := key{e.ID, p}
			required, ok := snapshot[k]
			if !ok {
				required = RequiredCountFor(versionsBy[e.ID], p)
			}
			cell := MatrixCell{Period: p, Completed: completed[k], Required: required}
			xt, exempt := exceptionAt[k]
			if exempt {
				t := xt
				cell.ExceptionType = &t
			}
			cell.State = compliance.ClassifyPeriod(compliance.PeriodInput{
				Period:    p,
				Current:   current,
				StartDate: e.StartDate,
				Completed: cell.Completed,
				Required:  required,
				Exempt:    exempt,
			})
			row.Cells = append(row.Cells, cell)
		}
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}

func exceptionFilterFor(filter scope.EmployeeFilter, from, to compliance.Period) ExceptionFilter {
	out := ExceptionFilter{FromPeriod: from, ToPeriod: to}
	if !filter.All {
		out.EmployeeIDs = append([]string{}, filter.IDs...)
	}
	return out
}
