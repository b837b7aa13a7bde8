package employees_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"employeehub/internal/domain/employees"
	"employeehub/internal/domain/employees/employeestest"
	"employeehub/internal/domain/scope"
	"employeehub/internal/domain/scope/scopetest"
	"employeehub/internal/platform/sentinel"
)

func directory() (*employees.Service, *employeestest.Store) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := employeestest.New(
		employeestest.Person("boss", "Manager", "", start),
		employeestest.Person("carer-a", "Carer", "boss", start),
		employeestest.Person("carer-b", "Carer", "other", start),
	)
	return employees.NewService(store, scope.NewResolver(store)), store
}

func ids(list []employees.Employee) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID)
	}
	return out
}

func TestListFollowsScope(t *testing.T) {
	svc, _ := directory()
	ctx := context.Background()

	all, err := svc.List(ctx, scopetest.Admin())
	require.NoError(t, err)
	assert.Equal(t, []string{"boss", "carer-a", "carer-b"}, ids(all))

	team, err := svc.List(ctx, scopetest.Manager("boss"))
	require.NoError(t, err)
	assert.Equal(t, []string{"boss", "carer-a"}, ids(team))

	own, err := svc.List(ctx, scopetest.Employee("carer-b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"carer-b"}, ids(own))

	none, err := svc.List(ctx, scope.Caller{UserID: "u", Scope: scope.ScopeReports})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetHidesExistence(t *testing.T) {
	svc, _ := directory()
	ctx := context.Background()

	e, err := svc.Get(ctx, scopetest.Manager("boss"), "carer-a")
	require.NoError(t, err)
	assert.Equal(t, "carer-a", e.ID)

	_, err = svc.Get(ctx, scopetest.Manager("boss"), "carer-b")
	assert.ErrorIs(t, err, sentinel.ErrForbidden)
	_, err = svc.Get(ctx, scopetest.Manager("boss"), "ghost")
	assert.ErrorIs(t, err, sentinel.ErrForbidden)

	_, err = svc.Get(ctx, scopetest.Admin(), "ghost")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
