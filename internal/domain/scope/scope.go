package scope

import (
	"context"
	"errors"
	"fmt"

	"employeehub/internal/platform/sentinel"
)

// Scope is the breadth of employee records a caller may touch.
type Scope string

const (
	ScopeOwn     Scope = "own"
	ScopeReports Scope = "reports"
	ScopeAll     Scope = "all"
)

func ParseScope(raw string) (Scope, error) {
	switch s := Scope(raw); s {
	case ScopeOwn, ScopeReports, ScopeAll:
		return s, nil
	case "":
		return ScopeOwn, nil
	default:
		return "", sentinel.NewValidation("dataScope", "must be one of own, reports, all")
	}
}

// Caller is what the resolver needs to know about the requesting user.
type Caller struct {
	UserID     string
	EmployeeID string
	Scope      Scope
}

// HierarchyStore answers reportsTo lookups. ManagerOf returns "" for a root
// employee and sentinel.ErrNotFound for an unknown one.
type HierarchyStore interface {
	ManagerOf(ctx context.Context, employeeID string) (string, error)
	DirectReportIDs(ctx context.Context, managerID string) ([]string, error)
}

type Option func(*Resolver)

// WithTransitiveReports widens the reports scope from direct reports to
// every descendant.
func WithTransitiveReports(enabled bool) Option {
	return func(r *Resolver) { r.transitive = enabled }
}

type Resolver struct {
	store      HierarchyStore
	transitive bool
}

func NewResolver(store HierarchyStore, opts ...Option) *Resolver {
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) IsInScope(ctx context.Context, caller Caller, targetID string) (bool, error) {
	switch caller.Scope {
	case ScopeAll:
		return true, nil
	case ScopeOwn:
		return caller.EmployeeID != "" && targetID == caller.EmployeeID, nil
	case ScopeReports:
		if caller.EmployeeID == "" {
			return false, nil
		}
		if targetID == caller.EmployeeID {
			return true, nil
		}
		if r.transitive {
			return r.isDescendant(ctx, caller.EmployeeID, targetID)
		}
		manager, err := r.store.ManagerOf(ctx, targetID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("resolve manager: %w", err)
		}
		return manager == caller.EmployeeID, nil
	default:
		return false, nil
	}
}

// Authorize returns sentinel.ErrForbidden when the target is outside the
// caller's scope. Unknown targets are reported the same way.
func (r *Resolver) Authorize(ctx context.Context, caller Caller, targetID string) error {
	ok, err := r.IsInScope(ctx, caller, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return sentinel.ErrForbidden
	}
	return nil
}

// ResolveReportIDs returns the caller's own id plus their reports. It is
// meaningful for the own and reports scopes only.
func (r *Resolver) ResolveReportIDs(ctx context.Context, caller Caller) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if caller.EmployeeID == "" {
		return out, nil
	}
	out[caller.EmployeeID] = struct{}{}
	if caller.Scope != ScopeReports {
		return out, nil
	}
	if !r.transitive {
		ids, err := r.store.DirectReportIDs(ctx, caller.EmployeeID)
		if err != nil {
			return nil, fmt.Errorf("direct reports: %w", err)
		}
		for _, id := range ids {
			out[id] = struct{}{}
		}
		return out, nil
	}

	queue := []string{caller.EmployeeID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ids, err := r.store.DirectReportIDs(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("reports of %s: %w", current, err)
		}
		for _, id := range ids {
			if _, seen := out[id]; seen {
				continue
			}
			out[id] = struct{}{}
			queue = append(queue, id)
		}
	}
	return out, nil
}

// isDescendant walks reportsTo upwards from target. The visited set stops
// the walk if the data contains a cycle.
func (r *Resolver) isDescendant(ctx context.Context, ancestorID, targetID string) (bool, error) {
	visited := map[string]struct{}{targetID: {}}
	current := targetID
	for {
		manager, err := r.store.ManagerOf(ctx, current)
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("resolve manager: %w", err)
		}
		if manager == "" {
			return false, nil
		}
		if manager == ancestorID {
			return true, nil
		}
		if _, seen := visited[manager]; seen {
			return false, nil
		}
		visited[manager] = struct{}{}
		current = manager
	}
}

// EmployeeFilter is the typed predicate list endpoints apply. All means no
// predicate; otherwise rows must match one of IDs.
type EmployeeFilter struct {
	All bool
	IDs []string
}

func (f EmployeeFilter) Allows(employeeID string) bool {
	if f.All {
		return true
	}
	for _, id := range f.IDs {
		if id == employeeID {
			return true
		}
	}
	return false
}

// Filter narrows a list request. A specific requested employee is authorized
// individually; otherwise the caller's whole scope is returned.
func (r *Resolver) Filter(ctx context.Context, caller Caller, requestedEmployeeID string) (EmployeeFilter, error) {
	if requestedEmployeeID != "" {
		if err := r.Authorize(ctx, caller, requestedEmployeeID); err != nil {
			return EmployeeFilter{}, err
		}
		return EmployeeFilter{IDs: []string{requestedEmployeeID}}, nil
	}
	if caller.Scope == ScopeAll {
		return EmployeeFilter{All: true}, nil
	}
	set, err := r.ResolveReportIDs(ctx, caller)
	if err != nil {
		return EmployeeFilter{}, err
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return EmployeeFilter{IDs: ids}, nil
}
