package employeeshandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"employeehub/internal/domain/employees"
	"employeehub/internal/domain/scope"
	"employeehub/internal/transport/http/api"
	"employeehub/internal/transport/http/middleware"
	"employeehub/internal/transport/http/shared"
)

type Service interface {
	List(ctx context.Context, caller scope.Caller) ([]employees.Employee, error)
	Get(ctx context.Context, caller scope.Caller, employeeID string) (employees.Employee, error)
}

type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/employees", h.handleList)
	r.Get("/employees/{employeeID}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	list, err := h.Service.List(r.Context(), middleware.Caller(r.Context()))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	employeeID, ok := shared.EmployeeParam(w, r, caller, reqID)
	if !ok {
		return
	}
	emp, err := h.Service.Get(r.Context(), caller, employeeID)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, emp, reqID)
}
