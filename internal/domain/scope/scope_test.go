package scope

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"employeehub/internal/platform/sentinel"
)

type fakeHierarchy struct {
	reportsTo map[string]string
	calls     int
}

func (f *fakeHierarchy) ManagerOf(_ context.Context, employeeID string) (string, error) {
	f.calls++
	manager, ok := f.reportsTo[employeeID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return manager, nil
}

func (f *fakeHierarchy) DirectReportIDs(_ context.Context, managerID string) ([]string, error) {
	var out []string
	for id, manager := range f.reportsTo {
		if manager == managerID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ceo -> manager -> lead -> dev
func orgChart() *fakeHierarchy {
	return &fakeHierarchy{reportsTo: map[string]string{
		"ceo":     "",
		"manager": "ceo",
		"lead":    "manager",
		"dev":     "lead",
		"peer":    "ceo",
	}}
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestIsInScope(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(orgChart())

	cases := []struct {
		name   string
		caller Caller
		target string
		want   bool
	}{
		{"all sees anyone", Caller{Scope: ScopeAll}, "dev", true},
		{"all sees unknown", Caller{Scope: ScopeAll}, "ghost", true},
		{"own sees self", Caller{EmployeeID: "lead", Scope: ScopeOwn}, "lead", true},
		{"own denies report", Caller{EmployeeID: "lead", Scope: ScopeOwn}, "dev", false},
		{"own without employee", Caller{Scope: ScopeOwn}, "", false},
		{"reports sees self", Caller{EmployeeID: "manager", Scope: ScopeReports}, "manager", true},
		{"reports sees direct", Caller{EmployeeID: "manager", Scope: ScopeReports}, "lead", true},
		{"reports denies grand report", Caller{EmployeeID: "manager", Scope: ScopeReports}, "dev", false},
		{"reports denies manager", Caller{EmployeeID: "manager", Scope: ScopeReports}, "ceo", false},
		{"reports denies unknown", Caller{EmployeeID: "manager", Scope: ScopeReports}, "ghost", false},
		{"reports without employee", Caller{Scope: ScopeReports}, "lead", false},
		{"unknown scope", Caller{EmployeeID: "manager", Scope: "team"}, "manager", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.IsInScope(ctx, tc.caller, tc.target)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAuthorizeHidesExistence(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(orgChart())
	caller := Caller{EmployeeID: "manager", Scope: ScopeReports}

	errUnknown := r.Authorize(ctx, caller, "ghost")
	errOutOfScope := r.Authorize(ctx, caller, "peer")
	assert.ErrorIs(t, errUnknown, sentinel.ErrForbidden)
	assert.ErrorIs(t, errOutOfScope, sentinel.ErrForbidden)
	assert.Equal(t, errUnknown, errOutOfScope)
	assert.False(t, errors.Is(errUnknown, sentinel.ErrNotFound))

	assert.NoError(t, r.Authorize(ctx, caller, "lead"))
}

func TestResolveReportIDs(t *testing.T) {
	ctx := context.Background()

	direct, err := NewResolver(orgChart()).ResolveReportIDs(ctx, Caller{EmployeeID: "manager", Scope: ScopeReports})
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "manager"}, keys(direct))

	deep, err := NewResolver(orgChart(), WithTransitiveReports(true)).ResolveReportIDs(ctx, Caller{EmployeeID: "manager", Scope: ScopeReports})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "lead", "manager"}, keys(deep))

	own, err := NewResolver(orgChart()).ResolveReportIDs(ctx, Caller{EmployeeID: "lead", Scope: ScopeOwn})
	require.NoError(t, err)
	assert.Equal(t, []string{"lead"}, keys(own))

	none, err := NewResolver(orgChart()).ResolveReportIDs(ctx, Caller{Scope: ScopeReports})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransitiveReportsIncludesGrandReports(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(orgChart(), WithTransitiveReports(true))
	caller := Caller{EmployeeID: "manager", Scope: ScopeReports}

	ok, err := r.IsInScope(ctx, caller, "dev")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsInScope(ctx, caller, "peer")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransitiveWalkTerminatesOnCycle(t *testing.T) {
	ctx := context.Background()
	cyclic := &fakeHierarchy{reportsTo: map[string]string{
		"a":     "b",
		"b":     "c",
		"c":     "a",
		"boss":  "",
		"other": "boss",
	}}
	r := NewResolver(cyclic, WithTransitiveReports(true))

	ok, err := r.IsInScope(ctx, Caller{EmployeeID: "boss", Scope: ScopeReports}, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, cyclic.calls, 10)

	ids, err := r.ResolveReportIDs(ctx, Caller{EmployeeID: "a", Scope: ScopeReports})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys(ids))
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(orgChart())

	f, err := r.Filter(ctx, Caller{Scope: ScopeAll}, "")
	require.NoError(t, err)
	assert.True(t, f.All)
	assert.True(t, f.Allows("anyone"))

	f, err = r.Filter(ctx, Caller{EmployeeID: "manager", Scope: ScopeReports}, "")
	require.NoError(t, err)
	sort.Strings(f.IDs)
	assert.Equal(t, []string{"lead", "manager"}, f.IDs)
	assert.False(t, f.Allows("dev"))

	f, err = r.Filter(ctx, Caller{EmployeeID: "manager", Scope: ScopeReports}, "lead")
	require.NoError(t, err)
	assert.Equal(t, []string{"lead"}, f.IDs)

	_, err = r.Filter(ctx, Caller{EmployeeID: "manager", Scope: ScopeReports}, "dev")
	assert.ErrorIs(t, err, sentinel.ErrForbidden)
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("reports")
	require.NoError(t, err)
	assert.Equal(t, ScopeReports, s)

	s, err = ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeOwn, s)

	_, err = ParseScope("team")
	assert.ErrorIs(t, err, sentinel.ErrValidation)
}
