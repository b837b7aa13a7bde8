package auth

import (
	"context"

	"employeehub/internal/platform/db"
)

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, roleID string) (Role, error)
	ReplaceRolePermissions(ctx context.Context, roleID string, permissions []string, hook func(q db.Querier, before, after Role) error) (Role, error)
}
