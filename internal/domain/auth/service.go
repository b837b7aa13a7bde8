package auth

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"employeehub/internal/domain/audit"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db"
	"employeehub/internal/platform/sentinel"
)

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	store  StoreAPI
	audit  audit.Recorder
	secret string
	ttl    time.Duration
}

func NewService(store StoreAPI, recorder audit.Recorder, secret string, ttl time.Duration) *Service {
	return &Service{store: store, audit: recorder, secret: secret, ttl: ttl}
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	user, err := s.store.FindActiveUserByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if CheckPassword(user.Password, password) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	claims := Claims{
		UserID:     user.ID,
		RoleID:     user.RoleID,
		RoleName:   user.RoleName,
		EmployeeID: user.EmployeeID,
		DataScope:  user.DataScope,
	}
	token, err := GenerateToken(s.secret, claims, s.ttl)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.WarnContext(ctx, "last login update failed", "user_id", user.ID, "err", err)
	}
	return LoginResult{
		Token:     token,
		ExpiresIn: int64(s.ttl.Seconds()),
		User:      UserFromClaims(&claims),
	}, nil
}

// Authenticate validates a bearer token and returns the caller it carries.
func (s *Service) Authenticate(token string) (UserContext, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return UserContext{}, err
	}
	return UserFromClaims(claims), nil
}

func (s *Service) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	return s.store.HasPermission(ctx, roleID, permission)
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *Service) GetRole(ctx context.Context, roleID string) (Role, error) {
	return s.store.GetRole(ctx, roleID)
}

// SetRolePermissions replaces the role's permission set. Every key must be
// in Catalog.
func (s *Service) SetRolePermissions(ctx context.Context, caller scope.Caller, roleID string, permissions []string) (Role, error) {
	verr := &sentinel.ValidationError{}
	seen := map[string]struct{}{}
	keys := make([]string, 0, len(permissions))
	for _, p := range permissions {
		if !IsKnownPermission(p) {
			verr.Add("permissions", "unknown permission "+p)
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		keys = append(keys, p)
	}
	if err := verr.OrNil(); err != nil {
		return Role{}, err
	}
	sort.Strings(keys)

	var evt audit.Event
	role, err := s.store.ReplaceRolePermissions(ctx, roleID, keys, func(q db.Querier, before, after Role) error {
		var err error
		evt, err = s.audit.Record(ctx, q, audit.Entry{
			TableName:   "role_permissions",
			RecordID:    roleID,
			Action:      audit.ActionUpdate,
			ActorUserID: caller.UserID,
			Old:         before.Permissions,
			New:         after.Permissions,
		})
		return err
	})
	if err != nil {
		return Role{}, err
	}
	s.audit.Publish(ctx, evt)
	return role, nil
}
