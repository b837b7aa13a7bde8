package appraisal

import (
	"context"

	"employeehub/internal/domain/employees"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db"
)

type StoreAPI interface {
	// Create returns sentinel.ErrConflict when the employee already has a
	// milestone of that type.
	Create(ctx context.Context, m Milestone, hook func(db.Querier, Milestone) error) (Milestone, error)
	Get(ctx context.Context, milestoneID string) (Milestone, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]Milestone, error)
	List(ctx context.Context, filter scope.EmployeeFilter) ([]Milestone, error)
	Update(ctx context.Context, milestoneID string, patch MilestonePatch, hook func(q db.Querier, before, after Milestone) error) (Milestone, error)
	Delete(ctx context.Context, milestoneID string, hook func(db.Querier, Milestone) error) error
}

type EmployeeStore interface {
	Get(ctx context.Context, employeeID string) (employees.Employee, error)
	ListActive(ctx context.Context, filter scope.EmployeeFilter) ([]employees.Employee, error)
}
