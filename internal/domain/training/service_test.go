package training

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"employeehub/internal/domain/audit/audittest"
	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/employees/employeestest"
	"employeehub/internal/domain/scope"
	"employeehub/internal/domain/scope/scopetest"
	"employeehub/internal/platform/db"
	"employeehub/internal/platform/sentinel"
)

type fakeStore struct {
	courses []Course
	records []Record
	seq     int
}

func (f *fakeStore) ListCourses(context.Context) ([]Course, error) {
	return append([]Course(nil), f.courses...), nil
}

func (f *fakeStore) GetCourse(_ context.Context, courseID string) (Course, error) {
	for _, c := range f.courses {
		if c.ID == courseID {
			return c, nil
		}
	}
	return Course{}, sentinel.ErrNotFound
}

func (f *fakeStore) CreateCourse(_ context.Context, in CourseInput, hook func(db.Querier, Course) error) (Course, error) {
	f.seq++
	c := Course{
		ID: fmt.Sprintf("course-%d", f.seq), Name: in.Name, Category: in.Category,
		ValidityMonths: in.ValidityMonths, ExpiryWarningDays: in.ExpiryWarningDays,
		NotifyEmployee: in.NotifyEmployee, NotifyAdmin: in.NotifyAdmin, MandatoryForRoles: in.MandatoryForRoles,
	}
	if err := hook(nil, c); err != nil {
		return Course{}, err
	}
	f.courses = append(f.courses, c)
	return c, nil
}

func (f *fakeStore) UpdateCourse(_ context.Context, courseID string, in CourseInput, hook func(db.Querier, Course, Course) error) (Course, error) {
	for i, c := range f.courses {
		if c.ID != courseID {
			continue
		}
		after := c
		after.Name, after.Category, after.ValidityMonths = in.Name, in.Category, in.ValidityMonths
		if err := hook(nil, c, after); err != nil {
			return Course{}, err
		}
		f.courses[i] = after
		return after, nil
	}
	return Course{}, sentinel.ErrNotFound
}

func (f *fakeStore) CreateRecord(_ context.Context, rec Record, hook func(db.Querier, Record) error) (Record, error) {
	f.seq++
	rec.ID = fmt.Sprintf("record-%d", f.seq)
	if err := hook(nil, rec); err != nil {
		return Record{}, err
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeStore) ListRecords(_ context.Context, employeeID string) ([]Record, error) {
	out := []Record{}
	for _, r := range f.records {
		if r.EmployeeID == employeeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRecord(_ context.Context, recordID string) (Record, error) {
	for _, r := range f.records {
		if r.ID == recordID {
			return r, nil
		}
	}
	return Record{}, sentinel.ErrNotFound
}

func (f *fakeStore) DeleteRecord(_ context.Context, recordID string, hook func(db.Querier, Record) error) error {
	for i, r := range f.records {
		if r.ID == recordID {
			if err := hook(nil, r); err != nil {
				return err
			}
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (f *fakeStore) LatestRecords(_ context.Context, filter scope.EmployeeFilter) ([]Record, error) {
	sorted := append([]Record(nil), f.records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CompletionDate.After(sorted[j].CompletionDate) })
	seen := map[string]bool{}
	out := []Record{}
	for _, r := range sorted {
		key := r.EmployeeID + "|" + r.CourseID
		if seen[key] || !filter.Allows(r.EmployeeID) {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out, nil
}

var today = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

type fixture struct {
	svc      *Service
	store    *fakeStore
	recorder *audittest.Recorder
}

// manager manages carer-a and carer-b; carer-c reports to someone else.
func newFixture(t *testing.T) fixture {
	t.Helper()
	emps := employeestest.New(
		employeestest.Person("manager", "Manager", "", day(2020, 1, 1)),
		employeestest.Person("carer-a", "Carer", "manager", day(2023, 1, 1)),
		employeestest.Person("carer-b", "Carer", "manager", day(2023, 1, 1)),
		employeestest.Person("carer-c", "Carer", "other", day(2023, 1, 1)),
	)
	store := &fakeStore{courses: []Course{
		{ID: "fire", Name: "Fire Safety", ValidityMonths: intPtr(12), NotifyEmployee: true, NotifyAdmin: true},
		{ID: "induction", Name: "Induction", ValidityMonths: nil, MandatoryForRoles: []string{"Carer"}},
	}}
	recorder := &audittest.Recorder{}
	svc := NewService(store, emps, scope.NewResolver(emps), recorder,
		WithClock(func() time.Time { return today.Add(9 * time.Hour) }))
	return fixture{svc: svc, store: store, recorder: recorder}
}

func TestRecordCompletionDerivesExpiry(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.RecordCompletion(context.Background(), scopetest.Admin(), RecordInput{
		EmployeeID: "carer-a", CourseID: "fire", CompletionDate: day(2024, 2, 29),
	})
	require.NoError(t, err)
	require.NotNil(t, rec.ExpiryDate)
	assert.Equal(t, day(2025, 2, 28), *rec.ExpiryDate)
	assert.Equal(t, []string{"training_records:INSERT"}, f.recorder.Actions())
	assert.Len(t, f.recorder.Published, 1)

	rec, err = f.svc.RecordCompletion(context.Background(), scopetest.Admin(), RecordInput{
		EmployeeID: "carer-a", CourseID: "induction", CompletionDate: day(2024, 1, 10),
	})
	require.NoError(t, err)
	assert.Nil(t, rec.ExpiryDate)
}

func TestRecordCompletionValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordCompletion(context.Background(), scopetest.Admin(), RecordInput{
		EmployeeID: "carer-a", CourseID: "fire", CompletionDate: today.AddDate(0, 0, 1),
	})
	var verr *sentinel.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "completionDate")

	_, err = f.svc.RecordCompletion(context.Background(), scopetest.Admin(), RecordInput{})
	require.ErrorIs(t, err, sentinel.ErrValidation)
	assert.Empty(t, f.recorder.Entries)
}

func TestRecordCompletionOutsideScope(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordCompletion(context.Background(), scopetest.Manager("manager"), RecordInput{
		EmployeeID: "carer-c", CourseID: "fire", CompletionDate: day(2025, 1, 1),
	})
	require.ErrorIs(t, err, sentinel.ErrForbidden)

	_, err = f.svc.RecordCompletion(context.Background(), scopetest.Manager("manager"), RecordInput{
		EmployeeID: "carer-b", CourseID: "fire", CompletionDate: day(2025, 1, 1),
	})
	require.NoError(t, err)
}

func TestStatusMatrix(t *testing.T) {
	f := newFixture(t)
	f.store.records = []Record{
		{ID: "r1", EmployeeID: "carer-a", CourseID: "fire", CompletionDate: day(2024, 6, 1), ExpiryDate: ptr(day(2025, 6, 1))},
		{ID: "r2", EmployeeID: "carer-a", CourseID: "fire", CompletionDate: day(2024, 7, 1), ExpiryDate: ptr(day(2025, 7, 1))},
		{ID: "r3", EmployeeID: "carer-b", CourseID: "fire", CompletionDate: day(2024, 1, 1), ExpiryDate: ptr(day(2025, 1, 1))},
		{ID: "r4", EmployeeID: "carer-b", CourseID: "induction", CompletionDate: day(2023, 1, 5)},
	}

	rows, err := f.svc.Status(context.Background(), scopetest.Manager("manager"), StatusQuery{})
	require.NoError(t, err)

	got := map[string]StatusRow{}
	for _, row := range rows {
		got[row.EmployeeID+"/"+row.CourseID] = row
	}
	require.Len(t, got, 5, "manager sees own fire plus both reports on both courses")

	latest := got["carer-a/fire"]
	assert.Equal(t, compliance.TrainingExpiringSoon, latest.Status)
	require.NotNil(t, latest.DaysUntilExpiry)
	assert.Equal(t, 16, *latest.DaysUntilExpiry)
	assert.Equal(t, "r2", *latest.TrainingRecordID)

	assert.Equal(t, compliance.TrainingExpired, got["carer-b/fire"].Status)
	assert.Equal(t, compliance.TrainingNotCompleted, got["carer-a/induction"].Status)
	assert.Nil(t, got["carer-a/induction"].TrainingRecordID)

	done := got["carer-b/induction"]
	assert.Equal(t, compliance.TrainingCompleted, done.Status)
	assert.True(t, done.NoExpiry)
	assert.Nil(t, done.DaysUntilExpiry)

	_, ok := got["manager/induction"]
	assert.False(t, ok, "induction applies to carers only")
}

func TestStatusFilters(t *testing.T) {
	f := newFixture(t)

	rows, err := f.svc.Status(context.Background(), scopetest.Admin(), StatusQuery{
		CourseID: "fire", Statuses: []compliance.TrainingStatus{compliance.TrainingNotCompleted},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	_, err = f.svc.Status(context.Background(), scopetest.Employee("carer-a"), StatusQuery{EmployeeID: "carer-b"})
	require.ErrorIs(t, err, sentinel.ErrForbidden)
}

func TestCourseWarningDaysOverrideDefault(t *testing.T) {
	f := newFixture(t)
	f.store.courses[0].ExpiryWarningDays = intPtr(60)
	f.store.records = []Record{
		{ID: "r1", EmployeeID: "carer-a", CourseID: "fire", CompletionDate: day(2024, 8, 1), ExpiryDate: ptr(day(2025, 8, 1))},
	}

	rows, err := f.svc.Status(context.Background(), scopetest.Admin(), StatusQuery{EmployeeID: "carer-a", CourseID: "fire"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, compliance.TrainingExpiringSoon, rows[0].Status)
}

func TestPendingSkipsRowsWithoutRecord(t *testing.T) {
	f := newFixture(t)
	f.store.records = []Record{
		{ID: "r1", EmployeeID: "carer-a", CourseID: "fire", CompletionDate: day(2024, 1, 1), ExpiryDate: ptr(day(2025, 1, 1))},
		{ID: "r2", EmployeeID: "carer-b", CourseID: "fire", CompletionDate: day(2025, 1, 1), ExpiryDate: ptr(day(2026, 1, 1))},
	}

	rows, err := f.svc.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "carer-a", rows[0].EmployeeID)
	assert.True(t, rows[0].NotifyEmployee)
}

func TestExpiringSortedBySoonest(t *testing.T) {
	f := newFixture(t)
	f.store.records = []Record{
		{ID: "r1", EmployeeID: "carer-a", CourseID: "fire", CompletionDate: day(2024, 6, 20), ExpiryDate: ptr(day(2025, 6, 20))},
		{ID: "r2", EmployeeID: "carer-b", CourseID: "fire", CompletionDate: day(2024, 1, 1), ExpiryDate: ptr(day(2025, 1, 1))},
		{ID: "r3", EmployeeID: "carer-c", CourseID: "fire", CompletionDate: day(2025, 1, 1), ExpiryDate: ptr(day(2026, 1, 1))},
	}

	rows, err := f.svc.Expiring(context.Background(), scopetest.Admin(), 30)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "carer-b", rows[0].EmployeeID)
	assert.Equal(t, "carer-a", rows[1].EmployeeID)
}

func TestSummarize(t *testing.T) {
	rows := []StatusRow{
		{Status: compliance.TrainingValid},
		{Status: compliance.TrainingExpiringSoon},
		{Status: compliance.TrainingCompleted},
		{Status: compliance.TrainingExpired},
		{Status: compliance.TrainingNotCompleted},
		{Status: compliance.TrainingNotCompleted},
	}
	sum := Summarize(rows)
	assert.Equal(t, 6, sum.Total)
	assert.Equal(t, 2, sum.NotCompleted)
	assert.Equal(t, "50", sum.ComplianceRate.String())

	assert.Equal(t, "66.7", Rate(2, 3).String())
	assert.True(t, Rate(0, 0).IsZero())
}

func TestDeleteRecordAudited(t *testing.T) {
	f := newFixture(t)
	f.store.records = []Record{{ID: "r1", EmployeeID: "carer-c", CourseID: "fire", CompletionDate: day(2025, 1, 1)}}

	err := f.svc.DeleteRecord(context.Background(), scopetest.Manager("manager"), "r1")
	require.ErrorIs(t, err, sentinel.ErrForbidden)

	err = f.svc.DeleteRecord(context.Background(), scopetest.Manager("manager"), "missing")
	require.ErrorIs(t, err, sentinel.ErrForbidden)

	err = f.svc.DeleteRecord(context.Background(), scopetest.Admin(), "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, f.svc.DeleteRecord(context.Background(), scopetest.Admin(), "r1"))
	assert.Empty(t, f.store.records)
	assert.Equal(t, []string{"training_records:DELETE"}, f.recorder.Actions())
}

func TestAuditFailureAbortsWrite(t *testing.T) {
	f := newFixture(t)
	f.recorder.Err = errors.New("audit down")

	_, err := f.svc.CreateCourse(context.Background(), scopetest.Admin(), CourseInput{Name: "Manual Handling"})
	require.Error(t, err)
	assert.Len(t, f.store.courses, 2)
	assert.Empty(t, f.recorder.Published)
}

func TestCreateCourseValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateCourse(context.Background(), scopetest.Admin(), CourseInput{Name: "  ", ValidityMonths: intPtr(0)})
	var verr *sentinel.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "validityMonths")
}

func ptr(t time.Time) *time.Time { return &t }
