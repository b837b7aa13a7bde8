package traininghandler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"employeehub/internal/domain/auth"
	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/scope"
	"employeehub/internal/domain/training"
	"employeehub/internal/platform/sentinel"
	"employeehub/internal/transport/http/handlers/handlertest"
)

var (
	carerA    = handlertest.ID("carer-a")
	outsider  = handlertest.ID("outsider")
	fire      = handlertest.ID("fire")
	missing   = handlertest.ID("missing")
	newCourse = handlertest.ID("new")
	rec1      = handlertest.ID("rec-1")
	rec9      = handlertest.ID("rec-9")
)

type fakeService struct {
	courseIn training.CourseInput
	recordIn training.RecordInput
	query    training.StatusQuery
	days     int
	deleted  string
	caller   scope.Caller
	rows     []training.StatusRow
	calls    int
}

func (f *fakeService) ListCourses(context.Context) ([]training.Course, error) {
	return []training.Course{{ID: fire, Name: "Fire Safety"}}, nil
}

func (f *fakeService) GetCourse(_ context.Context, id string) (training.Course, error) {
	f.calls++
	if id != fire {
		return training.Course{}, sentinel.ErrNotFound
	}
	return training.Course{ID: fire, Name: "Fire Safety"}, nil
}

func (f *fakeService) CreateCourse(_ context.Context, caller scope.Caller, in training.CourseInput) (training.Course, error) {
	f.caller, f.courseIn = caller, in
	return training.Course{ID: newCourse, Name: in.Name}, nil
}

func (f *fakeService) UpdateCourse(_ context.Context, caller scope.Caller, id string, in training.CourseInput) (training.Course, error) {
	f.calls++
	f.caller, f.courseIn = caller, in
	return training.Course{ID: id, Name: in.Name}, nil
}

func (f *fakeService) RecordCompletion(_ context.Context, caller scope.Caller, in training.RecordInput) (training.Record, error) {
	f.calls++
	f.caller, f.recordIn = caller, in
	if in.EmployeeID == outsider {
		return training.Record{}, sentinel.ErrForbidden
	}
	return training.Record{ID: rec1, EmployeeID: in.EmployeeID, CourseID: in.CourseID, CompletionDate: in.CompletionDate}, nil
}

func (f *fakeService) ListRecords(_ context.Context, caller scope.Caller, employeeID string) ([]training.Record, error) {
	f.calls++
	f.caller = caller
	return []training.Record{{ID: rec1, EmployeeID: employeeID}}, nil
}

func (f *fakeService) DeleteRecord(_ context.Context, _ scope.Caller, id string) error {
	f.calls++
	f.deleted = id
	return nil
}

func (f *fakeService) Status(_ context.Context, _ scope.Caller, q training.StatusQuery) ([]training.StatusRow, error) {
	f.calls++
	f.query = q
	return f.rows, nil
}

func (f *fakeService) Expiring(_ context.Context, _ scope.Caller, days int) ([]training.StatusRow, error) {
	f.days = days
	return f.rows, nil
}

func router(svc *fakeService, perms handlertest.Perms) http.Handler {
	user := handlertest.Manager
	h := NewHandler(svc, perms, 30)
	return handlertest.Router(&user, h.RegisterRoutes)
}

func TestCreateCourseDefaultsNotifyFlags(t *testing.T) {
	svc := &fakeService{}
	rec := handlertest.Do(t, router(svc, nil), http.MethodPost, "/training/courses", map[string]any{
		"name": "Fire Safety", "validityMonths": 12, "notifyAdmin": false,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, svc.courseIn.NotifyEmployee)
	assert.False(t, svc.courseIn.NotifyAdmin)
	require.NotNil(t, svc.courseIn.ValidityMonths)
	assert.Equal(t, 12, *svc.courseIn.ValidityMonths)
	assert.Equal(t, "manager-user", svc.caller.UserID)
}

func TestCourseRoutesNeedPermission(t *testing.T) {
	r := router(&fakeService{}, handlertest.Perms{auth.PermTrainingRecordsRecord: true})
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, r, http.MethodPost, "/training/courses", map[string]any{"name": "x"}).Code)
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, r, http.MethodPut, "/training/courses/"+fire, map[string]any{"name": "x"}).Code)
	assert.Equal(t, http.StatusOK, handlertest.Do(t, r, http.MethodGet, "/training/courses", nil).Code)
}

func TestGetCourseNotFound(t *testing.T) {
	rec := handlertest.Do(t, router(&fakeService{}, nil), http.MethodGet, "/training/courses/"+missing, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordCompletion(t *testing.T) {
	svc := &fakeService{}
	r := router(svc, nil)

	rec := handlertest.Do(t, r, http.MethodPost, "/training/records", map[string]string{
		"employeeId": carerA, "courseId": fire, "completionDate": "2025-03-04",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), svc.recordIn.CompletionDate)

	rec = handlertest.Do(t, r, http.MethodPost, "/training/records", map[string]string{"employeeId": carerA})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := handlertest.Decode(t, rec, nil).Error.Details["fields"]
	assert.Len(t, fields, 2)

	rec = handlertest.Do(t, r, http.MethodPost, "/training/records", map[string]string{
		"employeeId": outsider, "courseId": fire, "completionDate": "2025-03-04",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAndDeleteRecords(t *testing.T) {
	svc := &fakeService{}
	r := router(svc, nil)

	rec := handlertest.Do(t, r, http.MethodGet, "/employees/"+carerA+"/training-records", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []training.Record
	handlertest.Decode(t, rec, &records)
	assert.Equal(t, carerA, records[0].EmployeeID)

	rec = handlertest.Do(t, r, http.MethodDelete, "/training/records/"+rec9, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, rec9, svc.deleted)
}

func TestStatusParsesFilters(t *testing.T) {
	svc := &fakeService{rows: []training.StatusRow{
		{Status: compliance.TrainingExpired},
		{Status: compliance.TrainingValid},
	}}
	r := router(svc, nil)

	rec := handlertest.Do(t, r, http.MethodGet, "/training/status?courseId="+fire+"&status=expired,Expiring%20Soon", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fire, svc.query.CourseID)
	assert.Equal(t, []compliance.TrainingStatus{compliance.TrainingExpired, compliance.TrainingExpiringSoon}, svc.query.Statuses)

	var body struct {
		Rows    []training.StatusRow `json:"rows"`
		Summary training.Summary     `json:"summary"`
	}
	handlertest.Decode(t, rec, &body)
	assert.Equal(t, 2, body.Summary.Total)
	assert.Equal(t, "50", body.Summary.ComplianceRate.String())

	rec = handlertest.Do(t, r, http.MethodGet, "/training/status?status=lapsed", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExpiringDays(t *testing.T) {
	svc := &fakeService{}
	r := router(svc, nil)

	require.Equal(t, http.StatusOK, handlertest.Do(t, r, http.MethodGet, "/training/expiring", nil).Code)
	assert.Equal(t, 30, svc.days)
	require.Equal(t, http.StatusOK, handlertest.Do(t, r, http.MethodGet, "/training/expiring?days=60", nil).Code)
	assert.Equal(t, 60, svc.days)
	assert.Equal(t, http.StatusBadRequest, handlertest.Do(t, r, http.MethodGet, "/training/expiring?days=soon", nil).Code)
	assert.Equal(t, http.StatusBadRequest, handlertest.Do(t, r, http.MethodGet, "/training/expiring?days=-1", nil).Code)
}

func TestMalformedIDsNeverReachService(t *testing.T) {
	svc := &fakeService{}
	manager := router(svc, nil)
	admin := handlertest.Router(&handlertest.Admin, NewHandler(svc, nil, 30).RegisterRoutes)

	assert.Equal(t, http.StatusNotFound, handlertest.Do(t, manager, http.MethodGet, "/training/courses/fire", nil).Code)
	assert.Equal(t, http.StatusNotFound, handlertest.Do(t, manager, http.MethodPut, "/training/courses/fire", map[string]any{"name": "x"}).Code)

	assert.Equal(t, http.StatusNotFound, handlertest.Do(t, admin, http.MethodGet, "/employees/carer-a/training-records", nil).Code)
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, manager, http.MethodGet, "/employees/carer-a/training-records", nil).Code)
	assert.Equal(t, http.StatusNotFound, handlertest.Do(t, admin, http.MethodDelete, "/training/records/rec-9", nil).Code)
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, manager, http.MethodDelete, "/training/records/rec-9", nil).Code)

	rec := handlertest.Do(t, manager, http.MethodPost, "/training/records", map[string]string{
		"employeeId": "carer-a", "courseId": "fire", "completionDate": "2025-03-04",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, handlertest.Decode(t, rec, nil).Error.Details["fields"], 2)

	assert.Equal(t, http.StatusBadRequest, handlertest.Do(t, manager, http.MethodGet, "/training/status?employeeId=carer-a", nil).Code)
	assert.Equal(t, http.StatusBadRequest, handlertest.Do(t, manager, http.MethodGet, "/training/status?courseId=fire", nil).Code)

	assert.Zero(t, svc.calls)
}
