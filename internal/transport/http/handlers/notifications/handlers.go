package notificationshandler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"employeehub/internal/domain/auth"
	"employeehub/internal/domain/notifications"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/jobs"
	"employeehub/internal/transport/http/api"
	"employeehub/internal/transport/http/middleware"
	"employeehub/internal/transport/http/shared"
)

type Service interface {
	ListPending(ctx context.Context) ([]notifications.PendingItem, error)
	Dispatch(ctx context.Context, caller scope.Caller) (notifications.Result, error)
	ListLog(ctx context.Context, filter notifications.LogFilter) ([]notifications.LogEntry, int, error)
	ClearLog(ctx context.Context, caller scope.Caller) (int64, error)
}

type RunLister interface {
	ListRuns(ctx context.Context, jobType string, limit int) ([]jobs.Run, error)
}

type Handler struct {
	Service Service
	Runs    RunLister
	Perms   middleware.PermissionStore
	// DispatchLimit caps dispatch calls per actor per minute. Zero disables it.
	DispatchLimit int
}

func NewHandler(service Service, runs RunLister, perms middleware.PermissionStore, dispatchLimit int) *Handler {
	return &Handler{Service: service, Runs: runs, Perms: perms, DispatchLimit: dispatchLimit}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermNotificationsManage, h.Perms))
		r.Get("/pending", h.handlePending)
		r.With(middleware.RateLimit("dispatch", h.DispatchLimit, time.Minute)).Post("/dispatch", h.handleDispatch)
		r.Get("/log", h.handleListLog)
		r.Delete("/log", h.handleClearLog)
		r.Get("/runs", h.handleRuns)
	})
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	items, err := h.Service.ListPending(r.Context())
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	res, err := h.Service.Dispatch(r.Context(), middleware.Caller(r.Context()))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, res, reqID)
}

func (h *Handler) handleListLog(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 100, 500)
	filter := notifications.LogFilter{
		EmployeeID: r.URL.Query().Get("employeeId"),
		Type:       r.URL.Query().Get("type"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	v := shared.NewValidator()
	v.ID("employeeId", filter.EmployeeID)
	if v.Reject(w, reqID) {
		return
	}
	entries, total, err := h.Service.ListLog(r.Context(), filter)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	if entries == nil {
		entries = []notifications.LogEntry{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, entries, reqID)
}

func (h *Handler) handleClearLog(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	deleted, err := h.Service.ClearLog(r.Context(), middleware.Caller(r.Context()))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	slog.Info("notification log cleared", "deleted", deleted, "request_id", reqID)
	api.Success(w, map[string]int64{"deleted": deleted}, reqID)
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if h.Runs == nil {
		api.Success(w, []jobs.Run{}, reqID)
		return
	}
	page := shared.ParsePagination(r, 20, 100)
	runs, err := h.Runs.ListRuns(r.Context(), notifications.JobTrainingNotifications, page.Limit)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	api.Success(w, runs, reqID)
}
