package supervisionhandler

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
	"employeehub/internal/domain/supervision"
	"employeehub/internal/platform/sentinel"
	"employeehub/internal/transport/http/handlers/handlertest"
)

var (
	carerA   = handlertest.ID("carer-a")
	outsider = handlertest.ID("outsider")
	sup1     = handlertest.ID("sup-1")
	sup7     = handlertest.ID("sup-7")
	exc1     = handlertest.ID("exc-1")
	req1     = handlertest.ID("req-1")
)

type fakeService struct {
	caller      scope.Caller
	recordIn    supervision.RecordInput
	updatedID   string
	deleted     string
	matrixQ     supervision.MatrixQuery
	exceptionIn supervision.CreateExceptionInput
	exceptionQ  supervision.ExceptionQuery
	month       compliance.Period
	effective   time.Time
	count       int
	rows        []supervision.StatusRow
	requirement string
	supervisor  string
	calls       int
}

func (f *fakeService) CreateRecord(_ context.Context, caller scope.Caller, in supervision.RecordInput) (supervision.Record, error) {
	f.caller, f.recordIn = caller, in
	if in.EmployeeID == outsider {
		return supervision.Record{}, sentinel.ErrForbidden
	}
	return supervision.Record{ID: sup1, EmployeeID: in.EmployeeID, SupervisionDate: in.SupervisionDate}, nil
}

func (f *fakeService) UpdateRecord(_ context.Context, caller scope.Caller, id string, in supervision.RecordInput) (supervision.Record, error) {
	f.caller, f.recordIn, f.updatedID = caller, in, id
	return supervision.Record{ID: id, EmployeeID: in.EmployeeID}, nil
}

func (f *fakeService) ListRecords(_ context.Context, _ scope.Caller, employeeID string) ([]supervision.Record, error) {
	return []supervision.Record{{ID: sup1, EmployeeID: employeeID}}, nil
}

func (f *fakeService) DeleteRecord(_ context.Context, _ scope.Caller, id string) error {
	f.deleted = id
	return nil
}

func (f *fakeService) RequiredCountFor(_ context.Context, _ scope.Caller, _ string, month compliance.Period) (int, error) {
	f.month = month
	return 2, nil
}

func (f *fakeService) ListRequirements(_ context.Context, _ scope.Caller, employeeID string) ([]supervision.RequirementVersion, error) {
	return []supervision.RequirementVersion{{EmployeeID: employeeID, RequiredCount: 1}}, nil
}

func (f *fakeService) CreateRequirement(_ context.Context, _ scope.Caller, employeeID string, effectiveFrom time.Time, count int) (supervision.RequirementVersion, error) {
	f.effective, f.count = effectiveFrom, count
	return supervision.RequirementVersion{ID: req1, EmployeeID: employeeID, EffectiveFrom: effectiveFrom, RequiredCount: count}, nil
}

func (f *fakeService) UpdateRequiredCount(_ context.Context, _ scope.Caller, _ string, month compliance.Period, count int) (int64, error) {
	f.month, f.count = month, count
	return 3, nil
}

func (f *fakeService) Status(context.Context, scope.Caller, string) ([]supervision.StatusRow, error) {
	return f.rows, nil
}

func (f *fakeService) Matrix(_ context.Context, _ scope.Caller, q supervision.MatrixQuery) (supervision.Matrix, error) {
	f.matrixQ = q
	return supervision.Matrix{Periods: compliance.PeriodRange(q.From, q.To)}, nil
}

func (f *fakeService) CreateException(_ context.Context, _ scope.Caller, in supervision.CreateExceptionInput) (supervision.Exception, error) {
	f.exceptionIn = in
	if in.Period == "2025-03" {
		return supervision.Exception{}, sentinel.ErrConflict
	}
	return supervision.Exception{ID: exc1, EmployeeID: in.EmployeeID}, nil
}

func (f *fakeService) ListExceptions(_ context.Context, _ scope.Caller, q supervision.ExceptionQuery) ([]supervision.Exception, error) {
	f.exceptionQ = q
	return []supervision.Exception{}, nil
}

func (f *fakeService) DeleteException(_ context.Context, _ scope.Caller, id string) error {
	f.deleted = id
	return nil
}

func (f *fakeService) UpdateRequirement(_ context.Context, _ scope.Caller, id string, effectiveFrom time.Time, count int) (supervision.RequirementVersion, error) {
	f.calls++
	f.requirement, f.effective, f.count = id, effectiveFrom, count
	if effectiveFrom.Day() == 31 {
		return supervision.RequirementVersion{}, sentinel.ErrConflict
	}
	return supervision.RequirementVersion{ID: id, EffectiveFrom: effectiveFrom, RequiredCount: count}, nil
}

func (f *fakeService) DeleteRequirement(_ context.Context, _ scope.Caller, id string) error {
	f.calls++
	f.requirement = id
	return nil
}

func (f *fakeService) ListBySupervisor(_ context.Context, _ scope.Caller, supervisorID string) ([]supervision.Record, error) {
	f.calls++
	f.supervisor = supervisorID
	return []supervision.Record{{ID: sup1, ConductedByID: supervisorID}}, nil
}

func router(svc *fakeService, perms handlertest.Perms) http.Handler {
	user := handlertest.Manager
	return handlertest.Router(&user, NewHandler(svc, perms).RegisterRoutes)
}

func TestCreateRecord(t *testing.T) {
	svc := &fakeService{}
	r := router(svc, nil)

	rec := handlertest.Do(t, r, http.MethodPost, "/supervisions", map[string]any{
		"employeeId": carerA, "supervisionDate": "2025-03-04", "period": "2025-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), svc.recordIn.SupervisionDate)
	assert.Equal(t, compliance.MustParsePeriod("2025-02"), svc.recordIn.Period)
	assert.Nil(t, svc.recordIn.IsCompleted)
	assert.Equal(t, "manager", svc.caller.EmployeeID)

	rec = handlertest.Do(t, r, http.MethodPost, "/supervisions", map[string]any{
		"employeeId": carerA, "supervisionDate": "2025-03-04",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, svc.recordIn.Period.IsZero())

	rec = handlertest.Do(t, r, http.MethodPost, "/supervisions", map[string]any{
		"supervisionDate": "March", "period": "2025-13",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, handlertest.Decode(t, rec, nil).Error.Details["fields"], 3)

	rec = handlertest.Do(t, r, http.MethodPost, "/supervisions", map[string]any{
		"employeeId": outsider, "supervisionDate": "2025-03-04",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateAndDeleteRecord(t *testing.T) {
	svc := &fakeService{}
	r := router(svc, nil)

	rec := handlertest.Do(t, r, http.MethodPut, "/supervisions/"+sup7, map[string]any{
		"employeeId": carerA, "supervisionDate": "2025-03-04", "isCompleted": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sup7, svc.updatedID)
	require.NotNil(t, svc.recordIn.IsCompleted)
	assert.False(t, *svc.recordIn.IsCompleted)

	rec = handlertest.Do(t, r, http.MethodDelete, "/supervisions/"+sup7, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sup7, svc.deleted)
}

func TestRecordRoutesNeedCreatePermission(t *testing.T) {
	r := router(&fakeService{}, handlertest.Perms{auth.PermSupervisionsManage: true})
	body := map[string]any{"employeeId": carerA, "supervisionDate": "2025-03-04"}
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, r, http.MethodPost, "/supervisions", body).Code)
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, r, http.MethodDelete, "/supervisions/"+sup1, nil).Code)
	assert.Equal(t, http.StatusOK, handlertest.Do(t, r, http.MethodGet, "/employees/"+carerA+"/supervisions", nil).Code)
}

func TestStatusIncludesSummary(t *testing.T) {
	svc := &fakeService{rows: []supervision.StatusRow{
		{EmployeeID: "a", Status: compliance.SupervisionOverdue},
		{EmployeeID: "b", Status: compliance.SupervisionOK},
	}}
	rec := handlertest.Do(t, router(svc, nil), http.MethodGet, "/supervisions/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rows    []supervision.StatusRow `json:"rows"`
		Summary supervision.Summary     `json:"summary"`
	}
	handlertest.Decode(t, rec, &body)
	assert.Len(t, body.Rows, 2)
	assert.Equal(t, 2, body.Summary.Total)
	assert.Equal(t, 1, body.Summary.Overdue)
}

func TestMatrixParsesPeriods(t *testing.T) {
	svc := &fakeService{}
	r := router(svc, nil)

	rec := handlertest.Do(t, r, http.MethodGet, "/supervisions/matrix?employeeId="+carerA+"&from=2025-01&to=2025-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, carerA, svc.matrixQ.EmployeeID)
	assert.Equal(t, compliance.MustParsePeriod("2025-01"), svc.matrixQ.From)

	var m supervision.Matrix
	handlertest.Decode(t, rec, &m)
	assert.Len(t, m.Periods, 3)

	rec = handlertest.Do(t, r, http.MethodGet, "/supervisions/matrix?from=Jan", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExceptions(t *testing.T) {
	svc := &fakeService{}
	r := router(svc, nil)

	rec := handlertest.Do(t, r, http.MethodPost, "/supervisions/exceptions", map[string]string{
		"employeeId": carerA, "period": "2025-04", "exceptionType": "annual_leave",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "annual_leave", svc.exceptionIn.ExceptionType)

	rec = handlertest.Do(t, r, http.MethodPost, "/supervisions/exceptions", map[string]string{
		"employeeId": carerA, "period": "2025-03", "exceptionType": "annual_leave",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = handlertest.Do(t, r, http.MethodGet, "/supervisions/exceptions?employeeId="+carerA+"&from=2025-01&to=2025-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, supervision.ExceptionQuery{EmployeeID: carerA, FromPeriod: "2025-01", ToPeriod: "2025-06"}, svc.exceptionQ)

	rec = handlertest.Do(t, r, http.MethodDelete, "/supervisions/exceptions/"+exc1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, exc1, svc.deleted)
}

func TestExceptionWritesNeedManagePermission(t *testing.T) {
	r := router(&fakeService{}, handlertest.Perms{auth.PermSupervisionsCreate: true})
	rec := handlertest.Do(t, r, http.MethodPost, "/supervisions/exceptions", map[string]string{"employeeId": carerA})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, r, http.MethodDelete, "/supervisions/exceptions/"+exc1, nil).Code)
	assert.Equal(t, http.StatusOK, handlertest.Do(t, r, http.MethodGet, "/supervisions/exceptions", nil).Code)
}

func TestRequirements(t *testing.T) {
	svc := &fakeService{}
	r := router(svc, nil)

	rec := handlertest.Do(t, r, http.MethodGet, "/employees/"+carerA+"/supervision-requirements/2025-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count struct {
		Period        string `json:"period"`
		RequiredCount int    `json:"requiredCount"`
	}
	handlertest.Decode(t, rec, &count)
	assert.Equal(t, "2025-05", count.Period)
	assert.Equal(t, 2, count.RequiredCount)

	rec = handlertest.Do(t, r, http.MethodPost, "/employees/"+carerA+"/supervision-requirements", map[string]any{
		"effectiveFrom": "2025-05-15", "requiredCount": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC), svc.effective)

	rec = handlertest.Do(t, r, http.MethodPost, "/employees/"+carerA+"/supervision-requirements", map[string]any{
		"effectiveFrom": "2025-05-15", "requiredCount": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = handlertest.Do(t, r, http.MethodPut, "/employees/"+carerA+"/supervision-requirements/2025-06", map[string]any{"requiredCount": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated struct {
		RecordsUpdated int64 `json:"recordsUpdated"`
	}
	handlertest.Decode(t, rec, &updated)
	assert.Equal(t, int64(3), updated.RecordsUpdated)
	assert.Equal(t, compliance.MustParsePeriod("2025-06"), svc.month)

	rec = handlertest.Do(t, r, http.MethodGet, "/employees/"+carerA+"/supervision-requirements/june", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequirementVersionByID(t *testing.T) {
	svc := &fakeService{}
	r := router(svc, nil)

	rec := handlertest.Do(t, r, http.MethodPut, "/supervision-requirements/"+req1, map[string]any{
		"effectiveFrom": "2025-07-01", "requiredCount": 4,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, req1, svc.requirement)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), svc.effective)
	assert.Equal(t, 4, svc.count)

	rec = handlertest.Do(t, r, http.MethodPut, "/supervision-requirements/"+req1, map[string]any{
		"effectiveFrom": "2025-07-31", "requiredCount": 4,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = handlertest.Do(t, r, http.MethodPut, "/supervision-requirements/"+req1, map[string]any{
		"effectiveFrom": "2025-07-01", "requiredCount": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = handlertest.Do(t, r, http.MethodDelete, "/supervision-requirements/"+req1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.calls)
}

func TestRequirementVersionWritesNeedManagePermission(t *testing.T) {
	svc := &fakeService{}
	r := router(svc, handlertest.Perms{auth.PermSupervisionsCreate: true})
	body := map[string]any{"effectiveFrom": "2025-07-01", "requiredCount": 2}
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, r, http.MethodPut, "/supervision-requirements/"+req1, body).Code)
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, r, http.MethodDelete, "/supervision-requirements/"+req1, nil).Code)
	assert.Zero(t, svc.calls)
}

func TestListBySupervisor(t *testing.T) {
	svc := &fakeService{}
	rec := handlertest.Do(t, router(svc, nil), http.MethodGet, "/supervisions/by-supervisor/"+carerA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, carerA, svc.supervisor)

	var records []supervision.Record
	handlertest.Decode(t, rec, &records)
	require.Len(t, records, 1)
	assert.Equal(t, carerA, records[0].ConductedByID)
}

func TestMalformedIDsNeverReachService(t *testing.T) {
	svc := &fakeService{}
	manager := router(svc, nil)
	admin := handlertest.Router(&handlertest.Admin, NewHandler(svc, nil).RegisterRoutes)
	record := map[string]any{"employeeId": carerA, "supervisionDate": "2025-03-04"}
	requirement := map[string]any{"effectiveFrom": "2025-07-01", "requiredCount": 2}

	paths := []struct {
		method, path string
		body         any
	}{
		{http.MethodPut, "/supervisions/sup-7", record},
		{http.MethodDelete, "/supervisions/sup-7", nil},
		{http.MethodGet, "/supervisions/by-supervisor/mgr", nil},
		{http.MethodDelete, "/supervisions/exceptions/exc-1", nil},
		{http.MethodGet, "/employees/carer-a/supervisions", nil},
		{http.MethodGet, "/employees/carer-a/supervision-requirements", nil},
		{http.MethodGet, "/employees/carer-a/supervision-requirements/2025-05", nil},
		{http.MethodPost, "/employees/carer-a/supervision-requirements", requirement},
		{http.MethodPut, "/employees/carer-a/supervision-requirements/2025-06", map[string]any{"requiredCount": 3}},
		{http.MethodPut, "/supervision-requirements/req-1", requirement},
		{http.MethodDelete, "/supervision-requirements/req-1", nil},
	}
	for _, tc := range paths {
		assert.Equal(t, http.StatusNotFound, handlertest.Do(t, admin, tc.method, tc.path, tc.body).Code, tc.path)
		assert.Equal(t, http.StatusForbidden, handlertest.Do(t, manager, tc.method, tc.path, tc.body).Code, tc.path)
	}

	bodies := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/supervisions", map[string]any{"employeeId": "carer-a", "supervisionDate": "2025-03-04"}},
		{http.MethodPost, "/supervisions", map[string]any{"employeeId": carerA, "conductedById": "mgr", "supervisionDate": "2025-03-04"}},
		{http.MethodPost, "/supervisions/exceptions", map[string]any{"employeeId": "carer-a", "period": "2025-04", "exceptionType": "annual_leave"}},
		{http.MethodGet, "/supervisions/status?employeeId=carer-a", nil},
		{http.MethodGet, "/supervisions/matrix?employeeId=carer-a", nil},
		{http.MethodGet, "/supervisions/exceptions?employeeId=carer-a", nil},
	}
	for _, tc := range bodies {
		assert.Equal(t, http.StatusBadRequest, handlertest.Do(t, manager, tc.method, tc.path, tc.body).Code, tc.path)
	}

	assert.Zero(t, svc.calls)
	assert.Empty(t, svc.recordIn.EmployeeID)
	assert.Empty(t, svc.exceptionIn.EmployeeID)
	assert.Empty(t, svc.updatedID)
	assert.Empty(t, svc.deleted)
	assert.Empty(t, svc.matrixQ.EmployeeID)
	assert.Empty(t, svc.exceptionQ.EmployeeID)
}
