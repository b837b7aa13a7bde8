package reportshandler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"employeehub/internal/domain/reports"
	"employeehub/internal/domain/scope"
	"employeehub/internal/transport/http/api"
	"employeehub/internal/transport/http/middleware"
)

type Service interface {
	Compliance(ctx context.Context, caller scope.Caller) (reports.Compliance, error)
}

// Handler serves the compliance report. Content follows the caller's data
// scope, so no extra permission gates it.
type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/compliance", h.handleCompliance)
		r.Get("/compliance.pdf", h.handleCompliancePDF)
	})
}

func (h *Handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	rep, err := h.Service.Compliance(r.Context(), middleware.Caller(r.Context()))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, rep, reqID)
}

func (h *Handler) handleCompliancePDF(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	rep, err := h.Service.Compliance(r.Context(), middleware.Caller(r.Context()))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	var buf bytes.Buffer
	if err := reports.WritePDF(&buf, rep); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=compliance-"+rep.GeneratedAt.Format("2006-01-02")+".pdf")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("compliance pdf write failed", "err", err, "request_id", reqID)
	}
}
