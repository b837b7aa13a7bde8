package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
}

// Seed installs the permission catalog, the default roles and an optional
// admin login. It is safe to run on every start.
func Seed(ctx context.Context, pool *pgxpool.Pool, opts SeedOptions) error {
	if err := ensurePermissions(ctx, pool); err != nil {
		return err
	}
	roleIDs, err := ensureRoles(ctx, pool)
	if err != nil {
		return err
	}
	if err := ensureRolePermissions(ctx, pool, roleIDs); err != nil {
		return err
	}
	return ensureAdminUser(ctx, pool, roleIDs[RoleAdmin], opts.AdminEmail, opts.AdminPassword)
}

func ensurePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for _, perm := range Catalog {
		_, err := pool.Exec(ctx, `
      INSERT INTO permissions (key, description) VALUES ($1, $2)
      ON CONFLICT (key) DO UPDATE SET description = EXCLUDED.description
    `, perm.Key, perm.Description)
		if err != nil {
			return fmt.Errorf("seed permission %s: %w", perm.Key, err)
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	roleIDs := map[string]string{}
	for _, role := range DefaultRoles {
		var id string
		err := pool.QueryRow(ctx, "SELECT id FROM roles WHERE name = $1", role.Name).Scan(&id)
		if err == nil {
			roleIDs[role.Name] = id
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		err = pool.QueryRow(ctx, "INSERT INTO roles (name, data_scope) VALUES ($1, $2) RETURNING id", role.Name, string(role.DataScope)).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("seed role %s: %w", role.Name, err)
		}
		roleIDs[role.Name] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool, roleIDs map[string]string) error {
	for _, role := range DefaultRoles {
		for _, key := range role.Permissions {
			_, err := pool.Exec(ctx, `
        INSERT INTO role_permissions (role_id, permission_id)
        SELECT $1, p.id FROM permissions p WHERE p.key = $2
        ON CONFLICT DO NOTHING
      `, roleIDs[role.Name], key)
			if err != nil {
				return fmt.Errorf("seed %s permission %s: %w", role.Name, key, err)
			}
		}
	}
	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, roleID, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}
	var exists bool
	if err := pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, "INSERT INTO users (email, password_hash, role_id) VALUES ($1, $2, $3)", email, hash, roleID)
	return err
}
