//go:build integration

package employees

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db/dbtest"
)

func TestHierarchyKeepsDeactivatedReports(t *testing.T) {
	pool := dbtest.Start(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	manager := dbtest.InsertEmployee(t, pool, "Mo", "mo@example.com", start, nil)
	current := dbtest.InsertEmployee(t, pool, "Cy", "cy@example.com", start, &manager)
	leaver := dbtest.InsertEmployee(t, pool, "Lu", "lu@example.com", start, &manager)
	_, err := pool.Exec(ctx, "UPDATE employees SET active = false WHERE id = $1", leaver)
	require.NoError(t, err)

	store := NewStore(pool)
	got, err := store.ManagerOf(ctx, leaver)
	require.NoError(t, err)
	assert.Equal(t, manager, got)

	ids, err := store.DirectReportIDs(ctx, manager)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{current, leaver}, ids)

	resolver := scope.NewResolver(store)
	caller := scope.Caller{EmployeeID: manager, Scope: scope.ScopeReports}
	require.NoError(t, resolver.Authorize(ctx, caller, leaver))
	filter, err := resolver.Filter(ctx, caller, "")
	require.NoError(t, err)
	assert.True(t, filter.Allows(leaver), "list scope agrees with single-record scope")

	active, err := store.ListActive(ctx, filter)
	require.NoError(t, err)
	for _, e := range active {
		assert.NotEqual(t, leaver, e.ID)
	}
}
