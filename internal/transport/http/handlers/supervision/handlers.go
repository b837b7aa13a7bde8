package supervisionhandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"employeehub/internal/domain/auth"
	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/scope"
	"employeehub/internal/domain/supervision"
	"employeehub/internal/transport/http/api"
	"employeehub/internal/transport/http/middleware"
	"employeehub/internal/transport/http/shared"
)

type Service interface {
	CreateRecord(ctx context.Context, caller scope.Caller, in supervision.RecordInput) (supervision.Record, error)
	UpdateRecord(ctx context.Context, caller scope.Caller, recordID string, in supervision.RecordInput) (supervision.Record, error)
	ListRecords(ctx context.Context, caller scope.Caller, employeeID string) ([]supervision.Record, error)
	DeleteRecord(ctx context.Context, caller scope.Caller, recordID string) error
	ListBySupervisor(ctx context.Context, caller scope.Caller, supervisorID string) ([]supervision.Record, error)

	RequiredCountFor(ctx context.Context, caller scope.Caller, employeeID string, month compliance.Period) (int, error)
	ListRequirements(ctx context.Context, caller scope.Caller, employeeID string) ([]supervision.RequirementVersion, error)
	CreateRequirement(ctx context.Context, caller scope.Caller, employeeID string, effectiveFrom time.Time, count int) (supervision.RequirementVersion, error)
	UpdateRequirement(ctx context.Context, caller scope.Caller, requirementID string, effectiveFrom time.Time, count int) (supervision.RequirementVersion, error)
	DeleteRequirement(ctx context.Context, caller scope.Caller, requirementID string) error
	UpdateRequiredCount(ctx context.Context, caller scope.Caller, employeeID string, month compliance.Period, count int) (int64, error)

	Status(ctx context.Context, caller scope.Caller, employeeID string) ([]supervision.StatusRow, error)
	Matrix(ctx context.Context, caller scope.Caller, q supervision.MatrixQuery) (supervision.Matrix, error)

	CreateException(ctx context.Context, caller scope.Caller, in supervision.CreateExceptionInput) (supervision.Exception, error)
	ListExceptions(ctx context.Context, caller scope.Caller, q supervision.ExceptionQuery) ([]supervision.Exception, error)
	DeleteException(ctx context.Context, caller scope.Caller, exceptionID string) error
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
}

func NewHandler(service Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	create := middleware.RequirePermission(auth.PermSupervisionsCreate, h.Perms)
	manage := middleware.RequirePermission(auth.PermSupervisionsManage, h.Perms)

	r.Route("/supervisions", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/matrix", h.handleMatrix)
		r.Get("/by-supervisor/{supervisorID}", h.handleListBySupervisor)

		r.Get("/exceptions", h.handleListExceptions)
		r.With(manage).Post("/exceptions", h.handleCreateException)
		r.With(manage).Delete("/exceptions/{exceptionID}", h.handleDeleteException)

		r.With(create).Post("/", h.handleCreateRecord)
		r.With(create).Put("/{recordID}", h.handleUpdateRecord)
		r.With(create).Delete("/{recordID}", h.handleDeleteRecord)
	})

	r.Get("/employees/{employeeID}/supervisions", h.handleListRecords)
	r.Get("/employees/{employeeID}/supervision-requirements", h.handleListRequirements)
	r.Get("/employees/{employeeID}/supervision-requirements/{period}", h.handleRequiredCount)
	r.With(manage).Post("/employees/{employeeID}/supervision-requirements", h.handleCreateRequirement)
	r.With(manage).Put("/employees/{employeeID}/supervision-requirements/{period}", h.handleUpdateRequiredCount)
	r.With(manage).Put("/supervision-requirements/{requirementID}", h.handleUpdateRequirement)
	r.With(manage).Delete("/supervision-requirements/{requirementID}", h.handleDeleteRequirement)
}

type recordRequest struct {
	EmployeeID      string `json:"employeeId"`
	ConductedByID   string `json:"conductedById"`
	SupervisionDate string `json:"supervisionDate"`
	Period          string `json:"period"`
	Notes           string `json:"notes"`
	IsCompleted     *bool  `json:"isCompleted"`
}

func (p recordRequest) input(v *shared.Validator) supervision.RecordInput {
	v.Required("employeeId", p.EmployeeID, "is required")
	v.ID("employeeId", p.EmployeeID)
	v.ID("conductedById", p.ConductedByID)
	date, _ := v.Date("supervisionDate", p.SupervisionDate)
	in := supervision.RecordInput{
		EmployeeID:      p.EmployeeID,
		ConductedByID:   p.ConductedByID,
		SupervisionDate: date,
		Notes:           p.Notes,
		IsCompleted:     p.IsCompleted,
	}
	if p.Period != "" {
		in.Period = v.Period("period", p.Period)
	}
	return in
}

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload recordRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if v.Reject(w, reqID) {
		return
	}
	rec, err := h.Service.CreateRecord(r.Context(), middleware.Caller(r.Context()), in)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, rec, reqID)
}

func (h *Handler) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	recordID, ok := shared.IDParam(w, r, caller, "recordID", reqID)
	if !ok {
		return
	}
	var payload recordRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	in := payload.input(v)
	if v.Reject(w, reqID) {
		return
	}
	rec, err := h.Service.UpdateRecord(r.Context(), caller, recordID, in)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, rec, reqID)
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	recordID, ok := shared.IDParam(w, r, caller, "recordID", reqID)
	if !ok {
		return
	}
	if err := h.Service.DeleteRecord(r.Context(), caller, recordID); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	employeeID, ok := shared.EmployeeParam(w, r, caller, reqID)
	if !ok {
		return
	}
	records, err := h.Service.ListRecords(r.Context(), caller, employeeID)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, records, reqID)
}

func (h *Handler) handleListBySupervisor(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	supervisorID, ok := shared.IDParam(w, r, caller, "supervisorID", reqID)
	if !ok {
		return
	}
	records, err := h.Service.ListBySupervisor(r.Context(), caller, supervisorID)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, records, reqID)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	employeeID := r.URL.Query().Get("employeeId")
	v := shared.NewValidator()
	v.ID("employeeId", employeeID)
	if v.Reject(w, reqID) {
		return
	}
	rows, err := h.Service.Status(r.Context(), middleware.Caller(r.Context()), employeeID)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]any{"rows": rows, "summary": supervision.Summarize(rows)}, reqID)
}

func (h *Handler) handleMatrix(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	q := supervision.MatrixQuery{EmployeeID: r.URL.Query().Get("employeeId")}
	v.ID("employeeId", q.EmployeeID)
	if raw := r.URL.Query().Get("from"); raw != "" {
		q.From = v.Period("from", raw)
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		q.To = v.Period("to", raw)
	}
	if v.Reject(w, reqID) {
		return
	}
	matrix, err := h.Service.Matrix(r.Context(), middleware.Caller(r.Context()), q)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, matrix, reqID)
}

type exceptionRequest struct {
	EmployeeID    string `json:"employeeId"`
	Period        string `json:"period"`
	ExceptionType string `json:"exceptionType"`
	Notes         string `json:"notes"`
}

func (h *Handler) handleCreateException(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload exceptionRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.ID("employeeId", payload.EmployeeID)
	if v.Reject(w, reqID) {
		return
	}
	exc, err := h.Service.CreateException(r.Context(), middleware.Caller(r.Context()), supervision.CreateExceptionInput{
		EmployeeID:    payload.EmployeeID,
		Period:        payload.Period,
		ExceptionType: payload.ExceptionType,
		Notes:         payload.Notes,
	})
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, exc, reqID)
}

func (h *Handler) handleListExceptions(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	q := supervision.ExceptionQuery{
		EmployeeID: r.URL.Query().Get("employeeId"),
		FromPeriod: r.URL.Query().Get("from"),
		ToPeriod:   r.URL.Query().Get("to"),
	}
	v := shared.NewValidator()
	v.ID("employeeId", q.EmployeeID)
	if v.Reject(w, reqID) {
		return
	}
	items, err := h.Service.ListExceptions(r.Context(), middleware.Caller(r.Context()), q)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleDeleteException(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	exceptionID, ok := shared.IDParam(w, r, caller, "exceptionID", reqID)
	if !ok {
		return
	}
	if err := h.Service.DeleteException(r.Context(), caller, exceptionID); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}

type requirementRequest struct {
	EffectiveFrom string `json:"effectiveFrom"`
	RequiredCount int    `json:"requiredCount"`
}

func (p requirementRequest) validate(v *shared.Validator) time.Time {
	effective, _ := v.Date("effectiveFrom", p.EffectiveFrom)
	if p.RequiredCount < 1 {
		v.Add("requiredCount", "must be at least 1")
	}
	return effective
}

func (h *Handler) handleListRequirements(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	employeeID, ok := shared.EmployeeParam(w, r, caller, reqID)
	if !ok {
		return
	}
	items, err := h.Service.ListRequirements(r.Context(), caller, employeeID)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleRequiredCount(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	employeeID, ok := shared.EmployeeParam(w, r, caller, reqID)
	if !ok {
		return
	}
	v := shared.NewValidator()
	month := v.Period("period", chi.URLParam(r, "period"))
	if v.Reject(w, reqID) {
		return
	}
	count, err := h.Service.RequiredCountFor(r.Context(), caller, employeeID, month)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]any{"period": month, "requiredCount": count}, reqID)
}

func (h *Handler) handleCreateRequirement(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	employeeID, ok := shared.EmployeeParam(w, r, caller, reqID)
	if !ok {
		return
	}
	var payload requirementRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	effective := payload.validate(v)
	if v.Reject(w, reqID) {
		return
	}
	version, err := h.Service.CreateRequirement(r.Context(), caller, employeeID, effective, payload.RequiredCount)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, version, reqID)
}

func (h *Handler) handleUpdateRequiredCount(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	employeeID, ok := shared.EmployeeParam(w, r, caller, reqID)
	if !ok {
		return
	}
	var payload struct {
		RequiredCount int `json:"requiredCount"`
	}
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	month := v.Period("period", chi.URLParam(r, "period"))
	if payload.RequiredCount < 1 {
		v.Add("requiredCount", "must be at least 1")
	}
	if v.Reject(w, reqID) {
		return
	}
	updated, err := h.Service.UpdateRequiredCount(r.Context(), caller, employeeID, month, payload.RequiredCount)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]any{"period": month, "requiredCount": payload.RequiredCount, "recordsUpdated": updated}, reqID)
}

func (h *Handler) handleUpdateRequirement(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	requirementID, ok := shared.IDParam(w, r, caller, "requirementID", reqID)
	if !ok {
		return
	}
	var payload requirementRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	effective := payload.validate(v)
	if v.Reject(w, reqID) {
		return
	}
	version, err := h.Service.UpdateRequirement(r.Context(), caller, requirementID, effective, payload.RequiredCount)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, version, reqID)
}

func (h *Handler) handleDeleteRequirement(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	caller := middleware.Caller(r.Context())
	requirementID, ok := shared.IDParam(w, r, caller, "requirementID", reqID)
	if !ok {
		return
	}
	if err := h.Service.DeleteRequirement(r.Context(), caller, requirementID); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}
