package authhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"employeehub/internal/domain/auth"
	"employeehub/internal/domain/scope"
	"employeehub/internal/transport/http/api"
	"employeehub/internal/transport/http/middleware"
	"employeehub/internal/transport/http/shared"
)

type Service interface {
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	ListRoles(ctx context.Context) ([]auth.Role, error)
	GetRole(ctx context.Context, roleID string) (auth.Role, error)
	SetRolePermissions(ctx context.Context, caller scope.Caller, roleID string, permissions []string) (auth.Role, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
}

func NewHandler(service Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type rolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// RegisterRoutes mounts the authenticated routes. HandleLogin is mounted
// separately on the public router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/me", h.handleMe)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(auth.PermUsersManage, h.Perms))
			r.Get("/permissions", h.handleCatalog)
			r.Get("/roles", h.handleListRoles)
			r.Get("/roles/{roleID}", h.handleGetRole)
			r.Put("/roles/{roleID}/permissions", h.handleSetRolePermissions)
		})
	})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	res, err := h.Service.Login(r.Context(), payload.Email, payload.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, res, reqID)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	api.Success(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	api.Success(w, auth.Catalog, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.ListRoles(r.Context())
	if err != nil {
		api.FailError(w, r, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, roles, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	role, err := h.Service.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, role, reqID)
}

func (h *Handler) handleSetRolePermissions(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload rolePermissionsRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	if payload.Permissions == nil {
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "permissions", Reason: "is required"}})
		return
	}
	role, err := h.Service.SetRolePermissions(r.Context(), middleware.Caller(r.Context()), chi.URLParam(r, "roleID"), payload.Permissions)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, role, reqID)
}
