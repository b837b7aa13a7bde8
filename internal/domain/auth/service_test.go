package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"employeehub/internal/domain/audit/audittest"
	"employeehub/internal/domain/scope/scopetest"
	"employeehub/internal/platform/db"
	"employeehub/internal/platform/sentinel"
)

type fakeStore struct {
	users     map[string]AuthUser
	roles     map[string]Role
	lastLogin []string
}

func (f *fakeStore) FindActiveUserByEmail(_ context.Context, email string) (AuthUser, error) {
	u, ok := f.users[email]
	if !ok {
		return AuthUser{}, sentinel.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) UpdateLastLogin(_ context.Context, userID string) error {
	f.lastLogin = append(f.lastLogin, userID)
	return nil
}

func (f *fakeStore) HasPermission(_ context.Context, roleID, permission string) (bool, error) {
	for _, p := range f.roles[roleID].Permissions {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListRoles(context.Context) ([]Role, error) {
	out := []Role{}
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) GetRole(_ context.Context, roleID string) (Role, error) {
	r, ok := f.roles[roleID]
	if !ok {
		return Role{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) ReplaceRolePermissions(_ context.Context, roleID string, perms []string, hook func(db.Querier, Role, Role) error) (Role, error) {
	before, ok := f.roles[roleID]
	if !ok {
		return Role{}, sentinel.ErrNotFound
	}
	after := before
	after.Permissions = perms
	if err := hook(nil, before, after); err != nil {
		return Role{}, err
	}
	f.roles[roleID] = after
	return after, nil
}

func newFixture(t *testing.T) (*Service, *fakeStore, *audittest.Recorder) {
	t.Helper()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	store := &fakeStore{
		users: map[string]AuthUser{
			"manager@example.com": {ID: "u1", Email: "manager@example.com", RoleID: "r-manager", RoleName: RoleManager, DataScope: "reports", EmployeeID: "e1", Password: hash},
		},
		roles: map[string]Role{
			"r-manager": {ID: "r-manager", Name: RoleManager, DataScope: "reports", Permissions: []string{PermSupervisionsCreate}},
		},
	}
	rec := &audittest.Recorder{}
	return NewService(store, rec, "secret", time.Hour), store, rec
}

func TestLoginIssuesScopedToken(t *testing.T) {
	svc, store, _ := newFixture(t)

	res, err := svc.Login(context.Background(), " manager@example.com ", "correct horse")
	require.NoError(t, err)
	assert.EqualValues(t, 3600, res.ExpiresIn)
	assert.Equal(t, []string{"u1"}, store.lastLogin)

	user, err := svc.Authenticate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "e1", user.EmployeeID)
	assert.Equal(t, "reports", string(user.DataScope))
	assert.Equal(t, res.User, user)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, store, _ := newFixture(t)

	_, err := svc.Login(context.Background(), "manager@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, store.lastLogin)
}

func TestSetRolePermissions(t *testing.T) {
	svc, store, rec := newFixture(t)

	role, err := svc.SetRolePermissions(context.Background(), scopetest.Admin(), "r-manager",
		[]string{PermTrainingRecordsRecord, PermAppraisalsManage, PermAppraisalsManage})
	require.NoError(t, err)
	assert.Equal(t, []string{PermAppraisalsManage, PermTrainingRecordsRecord}, role.Permissions)

	ok, err := svc.HasPermission(context.Background(), "r-manager", PermSupervisionsCreate)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, role, store.roles["r-manager"])

	require.Len(t, rec.Entries, 1)
	assert.Equal(t, []string{PermSupervisionsCreate}, rec.Entries[0].Old)
	assert.Len(t, rec.Published, 1)
}

func TestSetRolePermissionsRejectsUnknown(t *testing.T) {
	svc, store, rec := newFixture(t)

	_, err := svc.SetRolePermissions(context.Background(), scopetest.Admin(), "r-manager", []string{"payroll.run"})
	var verr *sentinel.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["permissions"], "payroll.run")
	assert.Equal(t, []string{PermSupervisionsCreate}, store.roles["r-manager"].Permissions)
	assert.Empty(t, rec.Entries)
}

func TestSetRolePermissionsUnknownRole(t *testing.T) {
	svc, _, _ := newFixture(t)
	_, err := svc.SetRolePermissions(context.Background(), scopetest.Admin(), "missing", nil)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
