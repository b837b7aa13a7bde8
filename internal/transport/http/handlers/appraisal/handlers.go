package appraisalhandler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"employeehub/internal/domain/appraisal"
	"employeehub/internal/domain/auth"
	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/scope"
	"employeehub/internal/transport/http/api"
	"employeehub/internal/transport/http/middleware"
	"employeehub/internal/transport/http/shared"
)

type Service interface {
	GenerateMilestonesForEmployee(ctx context.Context, caller scope.Caller, employeeID string) ([]appraisal.Milestone, error)
	ListByEmployee(ctx context.Context, caller scope.Caller, employeeID string) ([]appraisal.Milestone, error)
	UpdateMilestone(ctx context.Context, caller scope.Caller, milestoneID string, patch appraisal.MilestonePatch) (appraisal.Milestone, error)
	DeleteMilestone(ctx context.Context, caller scope.Caller, milestoneID string) error
	Matrix(ctx context.Context, caller scope.Caller, back, forward int) ([]appraisal.MatrixRow, error)
	CreateMilestone(ctx context.Context, caller scope.Caller, in appraisal.NewMilestone) (appraisal.Milestone, error)
	Summary(ctx context.Context, caller scope.Caller) (appraisal.Summary, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
}

func NewHandler(service Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	manage := middleware.RequirePermission(auth.PermAppraisalsManage, h.Perms)

	r.Get("/appraisals/matrix", h.handleMatrix)
	r.Get("/appraisals/summary", h.handleSummary)
	r.With(manage).Post("/appraisals", h.handleCreate)
	r.With(manage).Patch("/appraisals/{milestoneID}", h.handleUpdate)
	r.With(manage).Delete("/appraisals/{milestoneID}", h.handleDelete)

	r.Get("/employees/{employeeID}/appraisals", h.handleList)
	r.With(manage).Post("/employees/{employeeID}/appraisals/generate", h.handleGenerate)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	employeeID, ok := shared.EmployeeParam(w, r, caller, reqID)
	if !ok {
		return
	}
	items, err := h.Service.GenerateMilestonesForEmployee(r.Context(), caller, employeeID)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, items, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	employeeID, ok := shared.EmployeeParam(w, r, caller, reqID)
	if !ok {
		return
	}
	items, err := h.Service.ListByEmployee(r.Context(), caller, employeeID)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, items, reqID)
}

// patchRequest keeps dates as strings so a bad value is reported per field.
type patchRequest struct {
	DueDate       compliance.Optional[string] `json:"dueDate"`
	CompletedDate compliance.Optional[string] `json:"completedDate"`
	ConductedByID compliance.Optional[string] `json:"conductedById"`
	Notes         compliance.Optional[string] `json:"notes"`
}

func (p patchRequest) patch(v *shared.Validator) appraisal.MilestonePatch {
	if id, ok := p.ConductedByID.Get(); ok {
		v.ID("conductedById", id)
	}
	out := appraisal.MilestonePatch{
		DueDate:       optionalDate(v, "dueDate", p.DueDate),
		CompletedDate: optionalDate(v, "completedDate", blankAsNull(p.CompletedDate)),
		ConductedByID: p.ConductedByID,
		Notes:         p.Notes,
	}
	return out
}

func blankAsNull(o compliance.Optional[string]) compliance.Optional[string] {
	if s, ok := o.Get(); ok && strings.TrimSpace(s) == "" {
		return compliance.Null[string]()
	}
	return o
}

func optionalDate(v *shared.Validator, field string, raw compliance.Optional[string]) compliance.Optional[time.Time] {
	out, err := compliance.MapOptional(raw, func(s string) (time.Time, error) {
		d, ok := v.Date(field, s)
		if !ok {
			return time.Time{}, errInvalidDate
		}
		return d, nil
	})
	if err != nil {
		return compliance.Unset[time.Time]()
	}
	return out
}

var errInvalidDate = errors.New("invalid date")

type createRequest struct {
	EmployeeID    string  `json:"employeeId"`
	MilestoneType string  `json:"milestoneType"`
	DueDate       string  `json:"dueDate"`
	CompletedDate string  `json:"completedDate"`
	ConductedByID *string `json:"conductedById"`
	Notes         string  `json:"notes"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload createRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	v.ID("employeeId", payload.EmployeeID)
	v.Required("milestoneType", payload.MilestoneType, "is required")
	v.Required("dueDate", payload.DueDate, "is required")
	in := appraisal.NewMilestone{
		EmployeeID:    payload.EmployeeID,
		MilestoneType: compliance.MilestoneType(payload.MilestoneType),
		ConductedByID: payload.ConductedByID,
		Notes:         payload.Notes,
	}
	if payload.DueDate != "" {
		in.DueDate, _ = v.Date("dueDate", payload.DueDate)
	}
	if payload.CompletedDate != "" {
		if d, ok := v.Date("completedDate", payload.CompletedDate); ok {
			in.CompletedDate = &d
		}
	}
	if payload.ConductedByID != nil {
		v.ID("conductedById", *payload.ConductedByID)
	}
	if v.Reject(w, reqID) {
		return
	}
	m, err := h.Service.CreateMilestone(r.Context(), middleware.Caller(r.Context()), in)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, m, reqID)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	summary, err := h.Service.Summary(r.Context(), middleware.Caller(r.Context()))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, summary, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	milestoneID, ok := shared.IDParam(w, r, caller, "milestoneID", reqID)
	if !ok {
		return
	}
	var payload patchRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	patch := payload.patch(v)
	if v.Reject(w, reqID) {
		return
	}
	m, err := h.Service.UpdateMilestone(r.Context(), caller, milestoneID, patch)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, m, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	milestoneID, ok := shared.IDParam(w, r, caller, "milestoneID", reqID)
	if !ok {
		return
	}
	if err := h.Service.DeleteMilestone(r.Context(), caller, milestoneID); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}

func (h *Handler) handleMatrix(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	back := shared.QueryInt(r, v, "back", -1)
	forward := shared.QueryInt(r, v, "forward", -1)
	if back < -1 || back > 20 {
		v.Add("back", "must be between 0 and 20")
	}
	if forward < -1 || forward > 20 {
		v.Add("forward", "must be between 0 and 20")
	}
	if v.Reject(w, reqID) {
		return
	}
	rows, err := h.Service.Matrix(r.Context(), middleware.Caller(r.Context()), back, forward)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, rows, reqID)
}
