package supervision

import (
	"context"
	"strings"

	"employeehub/internal/domain/audit"
	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db"
	"employeehub/internal/platform/sentinel"
)

// CreateException marks a month as not requiring supervision. A second
// exception for the same employee month is a conflict.
func (s *Service) CreateException(ctx context.Context, caller scope.Caller, in CreateExceptionInput) (Exception, error) {
	verr := &sentinel.ValidationError{}
	if in.EmployeeID == "" {
		verr.Add("employeeId", "is required")
	}
	period, err := compliance.ParsePeriod(strings.TrimSpace(in.Period))
	if err != nil {
		verr.Add("period", "must be in YYYY-MM format")
	}
	kind := ExceptionType(strings.TrimSpace(in.ExceptionType))
	if !kind.Valid() {
		verr.Add("exceptionType", "must be one of not_required, annual_leave, sick_leave")
	}
	if err := verr.OrNil(); err != nil {
		return Exception{}, err
	}
	if err := s.resolver.Authorize(ctx, caller, in.EmployeeID); err != nil {
		return Exception{}, err
	}
	if _, err := s.employees.Get(ctx, in.EmployeeID); err != nil {
		return Exception{}, forbidIfHidden(caller, err)
	}

	ex := Exception{
		EmployeeID:    in.EmployeeID,
		Period:        period,
		ExceptionType: kind,
		Notes:         strings.TrimSpace(in.Notes),
	}
	if caller.UserID != "" {
		actor := caller.UserID
		ex.CreatedBy = &actor
	}
	var evt audit.Event
	saved, err := s.store.CreateException(ctx, ex, func(q db.Querier, x Exception) error {
		var err error
		evt, err = s.record(ctx, q, caller, "supervision_exceptions", x.ID, audit.ActionInsert, nil, x)
		return err
	})
	if err != nil {
		return Exception{}, err
	}
	s.audit.Publish(ctx, evt)
	return saved, nil
}

func (s *Service) ListExceptions(ctx context.Context, caller scope.Caller, q ExceptionQuery) ([]Exception, error) {
	verr := &sentinel.ValidationError{}
	var filter ExceptionFilter
	if q.FromPeriod != "" {
		p, err := compliance.ParsePeriod(q.FromPeriod)
		if err != nil {
			verr.Add("fromPeriod", "must be in YYYY-MM format")
		}
		filter.FromPeriod = p
	}
	if q.ToPeriod != "" {
		p, err := compliance.ParsePeriod(q.ToPeriod)
		if err != nil {
			verr.Add("toPeriod", "must be in YYYY-MM format")
		}
		filter.ToPeriod = p
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	employees, err := s.resolver.Filter(ctx, caller, q.EmployeeID)
	if err != nil {
		return nil, err
	}
	filter.EmployeeID = q.EmployeeID
	if !employees.All {
		filter.EmployeeIDs = append([]string{}, employees.IDs...)
	}
	return s.store.ListExceptions(ctx, filter)
}

// DeleteException hard-deletes the row. The audit entry carrying the old row
// is written in the same transaction.
func (s *Service) DeleteException(ctx context.Context, caller scope.Caller, exceptionID string) error {
	existing, err := s.store.GetException(ctx, exceptionID)
	if err != nil {
		return forbidIfHidden(caller, err)
	}
	if err := s.resolver.Authorize(ctx, caller, existing.EmployeeID); err != nil {
		return err
	}
	var evt audit.Event
	err = s.store.DeleteException(ctx, exceptionID, func(q db.Querier, old Exception) error {
		var err error
		evt, err = s.record(ctx, q, caller, "supervision_exceptions", exceptionID, audit.ActionDelete, old, nil)
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Publish(ctx, evt)
	return nil
}
