package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"employeehub/internal/platform/db"
	"employeehub/internal/platform/sentinel"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID         string
	Email      string
	RoleID     string
	RoleName   string
	DataScope  string
	EmployeeID string
	Password   string
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var out AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT u.id::text, u.email, u.role_id::text, r.name, r.data_scope, COALESCE(u.employee_id::text, ''), u.password_hash
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE lower(u.email) = lower($1) AND u.active = true
  `, email).Scan(&out.ID, &out.Email, &out.RoleID, &out.RoleName, &out.DataScope, &out.EmployeeID, &out.Password)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, sentinel.ErrNotFound
	}
	return out, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id::text = $1", userID)
	return err
}

func (s *Store) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	var ok bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1
      FROM role_permissions rp
      JOIN permissions p ON p.id = rp.permission_id
      WHERE rp.role_id::text = $1 AND p.key = $2
    )
  `, roleID, permission).Scan(&ok)
	return ok, err
}

const roleSelect = `
  SELECT r.id::text, r.name, r.data_scope,
         COALESCE(array_agg(p.key ORDER BY p.key) FILTER (WHERE p.key IS NOT NULL), '{}')
  FROM roles r
  LEFT JOIN role_permissions rp ON rp.role_id = r.id
  LEFT JOIN permissions p ON p.id = rp.permission_id
`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.DataScope, &r.Permissions)
	return r, err
}

func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.DB.Query(ctx, roleSelect+" GROUP BY r.id ORDER BY r.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Role{}
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRole(ctx context.Context, roleID string) (Role, error) {
	return getRole(ctx, s.DB, roleID)
}

func getRole(ctx context.Context, q db.Querier, roleID string) (Role, error) {
	r, err := scanRole(q.QueryRow(ctx, roleSelect+" WHERE r.id::text = $1 GROUP BY r.id", roleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("role %s: %w", roleID, sentinel.ErrNotFound)
	}
	return r, err
}

// ReplaceRolePermissions swaps the role's permission set in one transaction.
// hook sees the role before and after the change.
func (s *Store) ReplaceRolePermissions(ctx context.Context, roleID string, permissions []string, hook func(q db.Querier, before, after Role) error) (Role, error) {
	var after Role
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT 1 FROM roles WHERE id::text = $1 FOR UPDATE", roleID); err != nil {
			return err
		}
		before, err := getRole(ctx, tx, roleID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM role_permissions WHERE role_id::text = $1", roleID); err != nil {
			return err
		}
		if len(permissions) > 0 {
			_, err = tx.Exec(ctx, `
        INSERT INTO role_permissions (role_id, permission_id)
        SELECT $1::uuid, p.id FROM permissions p WHERE p.key = ANY($2)
      `, roleID, permissions)
			if err != nil {
				return err
			}
		}
		after, err = getRole(ctx, tx, roleID)
		if err != nil {
			return err
		}
		return hook(tx, before, after)
	})
	return after, err
}
