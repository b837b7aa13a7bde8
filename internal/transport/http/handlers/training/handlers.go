package traininghandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"employeehub/internal/domain/auth"
	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/scope"
	"employeehub/internal/domain/training"
	"employeehub/internal/transport/http/api"
	"employeehub/internal/transport/http/middleware"
	"employeehub/internal/transport/http/shared"
)

type Service interface {
	ListCourses(ctx context.Context) ([]training.Course, error)
	GetCourse(ctx context.Context, courseID string) (training.Course, error)
	CreateCourse(ctx context.Context, caller scope.Caller, in training.CourseInput) (training.Course, error)
	UpdateCourse(ctx context.Context, caller scope.Caller, courseID string, in training.CourseInput) (training.Course, error)
	RecordCompletion(ctx context.Context, caller scope.Caller, in training.RecordInput) (training.Record, error)
	ListRecords(ctx context.Context, caller scope.Caller, employeeID string) ([]training.Record, error)
	DeleteRecord(ctx context.Context, caller scope.Caller, recordID string) error
	Status(ctx context.Context, caller scope.Caller, q training.StatusQuery) ([]training.StatusRow, error)
	Expiring(ctx context.Context, caller scope.Caller, days int) ([]training.StatusRow, error)
}

type Handler struct {
	Service     Service
	Perms       middleware.PermissionStore
	WarningDays int
}

func NewHandler(service Service, perms middleware.PermissionStore, warningDays int) *Handler {
	return &Handler{Service: service, Perms: perms, WarningDays: warningDays}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/training", func(r chi.Router) {
		r.Get("/courses", h.handleListCourses)
		r.Get("/courses/{courseID}", h.handleGetCourse)
		r.With(middleware.RequirePermission(auth.PermTrainingCoursesManage, h.Perms)).Post("/courses", h.handleCreateCourse)
		r.With(middleware.RequirePermission(auth.PermTrainingCoursesManage, h.Perms)).Put("/courses/{courseID}", h.handleUpdateCourse)

		r.With(middleware.RequirePermission(auth.PermTrainingRecordsRecord, h.Perms)).Post("/records", h.handleRecordCompletion)
		r.With(middleware.RequirePermission(auth.PermTrainingRecordsRecord, h.Perms)).Delete("/records/{recordID}", h.handleDeleteRecord)

		r.Get("/status", h.handleStatus)
		r.Get("/expiring", h.handleExpiring)
	})
	r.Get("/employees/{employeeID}/training-records", h.handleListRecords)
}

type courseRequest struct {
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	ValidityMonths    *int     `json:"validityMonths"`
	ExpiryWarningDays *int     `json:"expiryWarningDays"`
	NotifyEmployee    *bool    `json:"notifyEmployee"`
	NotifyAdmin       *bool    `json:"notifyAdmin"`
	MandatoryForRoles []string `json:"mandatoryForRoles"`
}

func (c courseRequest) input() training.CourseInput {
	in := training.CourseInput{
		Name:              c.Name,
		Category:          c.Category,
		ValidityMonths:    c.ValidityMonths,
		ExpiryWarningDays: c.ExpiryWarningDays,
		NotifyEmployee:    true,
		NotifyAdmin:       true,
		MandatoryForRoles: c.MandatoryForRoles,
	}
	if c.NotifyEmployee != nil {
		in.NotifyEmployee = *c.NotifyEmployee
	}
	if c.NotifyAdmin != nil {
		in.NotifyAdmin = *c.NotifyAdmin
	}
	return in
}

type recordRequest struct {
	EmployeeID     string `json:"employeeId"`
	CourseID       string `json:"courseId"`
	CompletionDate string `json:"completionDate"`
	CertificateURL string `json:"certificateUrl"`
	Notes          string `json:"notes"`
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Service.ListCourses(r.Context())
	if err != nil {
		api.FailError(w, r, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, courses, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	courseID, ok := shared.PathID(w, r, "courseID", reqID)
	if !ok {
		return
	}
	course, err := h.Service.GetCourse(r.Context(), courseID)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, course, reqID)
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload courseRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	course, err := h.Service.CreateCourse(r.Context(), middleware.Caller(r.Context()), payload.input())
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, course, reqID)
}

func (h *Handler) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	courseID, ok := shared.PathID(w, r, "courseID", reqID)
	if !ok {
		return
	}
	var payload courseRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	course, err := h.Service.UpdateCourse(r.Context(), middleware.Caller(r.Context()), courseID, payload.input())
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, course, reqID)
}

func (h *Handler) handleRecordCompletion(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload recordRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	v.Required("courseId", payload.CourseID, "is required")
	v.ID("employeeId", payload.EmployeeID)
	v.ID("courseId", payload.CourseID)
	completion, _ := v.Date("completionDate", payload.CompletionDate)
	if v.Reject(w, reqID) {
		return
	}
	rec, err := h.Service.RecordCompletion(r.Context(), middleware.Caller(r.Context()), training.RecordInput{
		EmployeeID:     payload.EmployeeID,
		CourseID:       payload.CourseID,
		CompletionDate: completion,
		CertificateURL: payload.CertificateURL,
		Notes:          payload.Notes,
	})
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, rec, reqID)
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

var knownStatuses = []string{
	string(compliance.TrainingValid),
	string(compliance.TrainingExpiringSoon),
	string(compliance.TrainingExpired),
	string(compliance.TrainingNotCompleted),
	string(compliance.TrainingCompleted),
}

func parseStatus(raw string) (compliance.TrainingStatus, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range knownStatuses {
		if strings.EqualFold(s, raw) {
			return compliance.TrainingStatus(s), true
		}
	}
	return "", false
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	q := training.StatusQuery{
		EmployeeID: r.URL.Query().Get("employeeId"),
		CourseID:   r.URL.Query().Get("courseId"),
	}
	v := shared.NewValidator()
	v.ID("employeeId", q.EmployeeID)
	v.ID("courseId", q.CourseID)
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := parseStatus(part)
			if !ok {
				v.Add("status", "must be one of "+strings.Join(knownStatuses, ", "))
				continue
			}
			q.Statuses = append(q.Statuses, status)
		}
	}
	if v.Reject(w, reqID) {
		return
	}
	rows, err := h.Service.Status(r.Context(), middleware.Caller(r.Context()), q)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]any{"rows": rows, "summary": training.Summarize(rows)}, reqID)
}

func (h *Handler) handleExpiring(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	days := shared.QueryInt(r, v, "days", h.WarningDays)
	if days < 0 || days > 3650 {
		v.Add("days", "must be between 0 and 3650")
	}
	if v.Reject(w, reqID) {
		return
	}
	rows, err := h.Service.Expiring(r.Context(), middleware.Caller(r.Context()), days)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, rows, reqID)
}
