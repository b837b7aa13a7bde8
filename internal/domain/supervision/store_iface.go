package supervision

import (
	"context"
	"time"

	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/employees"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db"
)

type StoreAPI interface {
	CreateRecord(ctx context.Context, rec Record, hook func(db.Querier, Record) error) (Record, error)
	UpdateRecord(ctx context.Context, rec Record, hook func(q db.Querier, before, after Record) error) (Record, error)
	GetRecord(ctx context.Context, recordID string) (Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	DeleteRecord(ctx context.Context, recordID string, hook func(db.Querier, Record) error) error
	LastSupervisionDates(ctx context.Context, filter scope.EmployeeFilter) (map[string]time.Time, error)

	RequiredCountFor(ctx context.Context, employeeID string, month compliance.Period) (int, error)
	ListRequirements(ctx context.Context, filter scope.EmployeeFilter) ([]RequirementVersion, error)
	CreateRequirement(ctx context.Context, v RequirementVersion, hook func(q db.Querier, v RequirementVersion, resnapshotted int64) error) (RequirementVersion, error)
	GetRequirement(ctx context.Context, requirementID string) (RequirementVersion, error)
	UpdateRequirement(ctx context.Context, v RequirementVersion, hook func(q db.Querier, before, after RequirementVersion, resnapshotted int64) error) (RequirementVersion, error)
	DeleteRequirement(ctx context.Context, requirementID string, hook func(q db.Querier, old RequirementVersion, resnapshotted int64) error) error
	UpdateRequiredCount(ctx context.Context, employeeID string, month compliance.Period, count int, hook func(q db.Querier, affected int64) error) (int64, error)

	CreateException(ctx context.Context, ex Exception, hook func(db.Querier, Exception) error) (Exception, error)
	GetException(ctx context.Context, exceptionID string) (Exception, error)
	ListExceptions(ctx context.Context, filter ExceptionFilter) ([]Exception, error)
	DeleteException(ctx context.Context, exceptionID string, hook func(db.Querier, Exception) error) error
}

type EmployeeStore interface {
	Get(ctx context.Context, employeeID string) (employees.Employee, error)
	ListActive(ctx context.Context, filter scope.EmployeeFilter) ([]employees.Employee, error)
}
