package reportshandler

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/reports"
	"employeehub/internal/domain/scope"
	"employeehub/internal/domain/training"
	"employeehub/internal/platform/sentinel"
	"employeehub/internal/transport/http/handlers/handlertest"
)

type fakeService struct {
	caller scope.Caller
	err    error
}

func (f *fakeService) Compliance(_ context.Context, caller scope.Caller) (reports.Compliance, error) {
	f.caller = caller
	if f.err != nil {
		return reports.Compliance{}, f.err
	}
	return reports.Compliance{
		GeneratedAt: time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC),
		Training:    training.Summary{Total: 2, Valid: 1, Expired: 1, ComplianceRate: decimal.NewFromInt(50)},
		TrainingRows: []training.StatusRow{
			{EmployeeName: "Ada", CourseName: "Fire Safety", Status: compliance.TrainingExpired},
			{EmployeeName: "Bo", CourseName: "Fire Safety", Status: compliance.TrainingValid},
		},
		AttentionCourses: []reports.CourseAttention{{CourseID: "fire", CourseName: "Fire Safety", Expired: 1}},
	}, nil
}

func router(svc *fakeService) http.Handler {
	user := handlertest.Manager
	return handlertest.Router(&user, NewHandler(svc).RegisterRoutes)
}

func TestComplianceJSON(t *testing.T) {
	svc := &fakeService{}
	rec := handlertest.Do(t, router(svc), http.MethodGet, "/reports/compliance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, scope.ScopeReports, svc.caller.Scope)
	assert.Equal(t, "manager", svc.caller.EmployeeID)

	var body struct {
		Training struct {
			Total          int    `json:"total"`
			ComplianceRate string `json:"complianceRate"`
		} `json:"training"`
		AttentionCourses []reports.CourseAttention `json:"attentionCourses"`
		TrainingRows     any                       `json:"TrainingRows"`
	}
	handlertest.Decode(t, rec, &body)
	assert.Equal(t, 2, body.Training.Total)
	assert.Equal(t, "50", body.Training.ComplianceRate)
	assert.Len(t, body.AttentionCourses, 1)
	assert.Nil(t, body.TrainingRows)
}

func TestCompliancePDF(t *testing.T) {
	rec := handlertest.Do(t, router(&fakeService{}), http.MethodGet, "/reports/compliance.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "compliance-2025-06-15.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestComplianceErrorMapping(t *testing.T) {
	rec := handlertest.Do(t, router(&fakeService{err: sentinel.ErrForbidden}), http.MethodGet, "/reports/compliance.pdf", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
