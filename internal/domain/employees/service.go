package employees

import (
	"context"
	"errors"

	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/sentinel"
)

type Directory interface {
	Get(ctx context.Context, employeeID string) (Employee, error)
	ListActive(ctx context.Context, filter scope.EmployeeFilter) ([]Employee, error)
}

// Service is the scoped read side of the employee directory.
type Service struct {
	store    Directory
	resolver *scope.Resolver
}

func NewService(store Directory, resolver *scope.Resolver) *Service {
	return &Service{store: store, resolver: resolver}
}

func (s *Service) List(ctx context.Context, caller scope.Caller) ([]Employee, error) {
	filter, err := s.resolver.Filter(ctx, caller, "")
	if err != nil {
		return nil, err
	}
	return s.store.ListActive(ctx, filter)
}

// Get hides unknown and out-of-scope employees behind the same Forbidden
// unless the caller sees everyone.
func (s *Service) Get(ctx context.Context, caller scope.Caller, employeeID string) (Employee, error) {
	if err := s.resolver.Authorize(ctx, caller, employeeID); err != nil {
		return Employee{}, err
	}
	e, err := s.store.Get(ctx, employeeID)
	if errors.Is(err, sentinel.ErrNotFound) && caller.Scope != scope.ScopeAll {
		return Employee{}, sentinel.ErrForbidden
	}
	return e, err
}
