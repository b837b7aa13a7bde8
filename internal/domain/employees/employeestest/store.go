// Package employeestest provides an in-memory employee directory that also
// serves as the org chart for scope resolution.
package employeestest

import (
	"context"
	"sort"
	"time"

	"employeehub/internal/domain/employees"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/sentinel"
)

type Store struct {
	Employees []employees.Employee
}

func New(emps ...employees.Employee) *Store {
	return &Store{Employees: emps}
}

// Person builds an active employee. managerID may be empty.
func Person(id, role, managerID string, start time.Time) employees.Employee {
	e := employees.Employee{
		ID:                         id,
		FirstName:                  id,
		LastName:                   "Test",
		Email:                      id + "@example.com",
		Role:                       role,
		Department:                 "Care",
		StartDate:                  start,
		Active:                     true,
		Status:                     "active",
		SupervisionFrequencyMonths: 3,
	}
	if managerID != "" {
		m := managerID
		e.ReportsTo = &m
	}
	return e
}

func (s *Store) Get(_ context.Context, employeeID string) (employees.Employee, error) {
	for _, e := range s.Employees {
		if e.ID == employeeID {
			return e, nil
		}
	}
	return employees.Employee{}, sentinel.ErrNotFound
}

func (s *Store) ListActive(_ context.Context, filter scope.EmployeeFilter) ([]employees.Employee, error) {
	out := []employees.Employee{}
	for _, e := range s.Employees {
		if e.Active && filter.Allows(e.ID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ManagerOf(_ context.Context, employeeID string) (string, error) {
	for _, e := range s.Employees {
		if e.ID == employeeID {
			if e.ReportsTo == nil {
				return "", nil
			}
			return *e.ReportsTo, nil
		}
	}
	return "", sentinel.ErrNotFound
}

func (s *Store) DirectReportIDs(_ context.Context, managerID string) ([]string, error) {
	var out []string
	for _, e := range s.Employees {
		if e.ReportsTo != nil && *e.ReportsTo == managerID {
			out = append(out, e.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

var _ scope.HierarchyStore = (*Store)(nil)
