package training

import (
	"context"

	"employeehub/internal/domain/employees"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db"
)

type StoreAPI interface {
	ListCourses(ctx context.Context) ([]Course, error)
	GetCourse(ctx context.Context, courseID string) (Course, error)
	CreateCourse(ctx context.Context, in CourseInput, hook func(db.Querier, Course) error) (Course, error)
	UpdateCourse(ctx context.Context, courseID string, in CourseInput, hook func(q db.Querier, before, after Course) error) (Course, error)
	CreateRecord(ctx context.Context, rec Record, hook func(db.Querier, Record) error) (Record, error)
	ListRecords(ctx context.Context, employeeID string) ([]Record, error)
	GetRecord(ctx context.Context, recordID string) (Record, error)
	DeleteRecord(ctx context.Context, recordID string, hook func(db.Querier, Record) error) error
	LatestRecords(ctx context.Context, filter scope.EmployeeFilter) ([]Record, error)
}

type EmployeeStore interface {
	Get(ctx context.Context, employeeID string) (employees.Employee, error)
	ListActive(ctx context.Context, filter scope.EmployeeFilter) ([]employees.Employee, error)
}
