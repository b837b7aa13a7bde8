// Package scopetest provides an in-memory org chart for resolver tests.
package scopetest

import (
	"context"
	"sort"

	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/sentinel"
)

// Hierarchy maps employee id to manager id. An empty manager means top of
// the tree.
type Hierarchy map[string]string

func (h Hierarchy) ManagerOf(_ context.Context, employeeID string) (string, error) {
	manager, ok := h[employeeID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return manager, nil
}

func (h Hierarchy) DirectReportIDs(_ context.Context, managerID string) ([]string, error) {
	var out []string
	for id, manager := range h {
		if manager == managerID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func Admin() scope.Caller {
	return scope.Caller{UserID: "admin-user", Scope: scope.ScopeAll}
}

func Manager(employeeID string) scope.Caller {
	return scope.Caller{UserID: employeeID + "-user", EmployeeID: employeeID, Scope: scope.ScopeReports}
}

func Employee(employeeID string) scope.Caller {
	return scope.Caller{UserID: employeeID + "-user", EmployeeID: employeeID, Scope: scope.ScopeOwn}
}

var _ scope.HierarchyStore = Hierarchy(nil)
