package supervision

import (
	"context"
	"fmt"
	"sort"
	"time"

	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db"
	"employeehub/internal/platform/sentinel"
)

type fakeStore struct {
	records    []Record
	versions   []RequirementVersion
	exceptions []Exception
	seq        int
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) CreateRecord(_ context.Context, rec Record, hook func(db.Querier, Record) error) (Record, error) {
	rec.ID = f.nextID("rec")
	if err := hook(nil, rec); err != nil {
		return Record{}, err
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeStore) UpdateRecord(_ context.Context, rec Record, hook func(db.Querier, Record, Record) error) (Record, error) {
	for i, r := range f.records {
		if r.ID == rec.ID {
			if err := hook(nil, r, rec); err != nil {
				return Record{}, err
			}
			f.records[i] = rec
			return rec, nil
		}
	}
	return Record{}, sentinel.ErrNotFound
}

func (f *fakeStore) GetRecord(_ context.Context, recordID string) (Record, error) {
	for _, r := range f.records {
		if r.ID == recordID {
			return r, nil
		}
	}
	return Record{}, sentinel.ErrNotFound
}

func (f *fakeStore) ListRecords(_ context.Context, filter RecordFilter) ([]Record, error) {
	out := []Record{}
	for _, r := range f.records {
		if !filter.Employees.Allows(r.EmployeeID) {
			continue
		}
		if filter.ConductedByID != "" && r.ConductedByID != filter.ConductedByID {
			continue
		}
		if !filter.From.IsZero() && r.Period.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && r.Period.After(filter.To) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
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

func (f *fakeStore) LastSupervisionDates(_ context.Context, filter scope.EmployeeFilter) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	for _, r := range f.records {
		if !r.IsCompleted || !filter.Allows(r.EmployeeID) {
			continue
		}
		if cur, ok := out[r.EmployeeID]; !ok || r.SupervisionDate.After(cur) {
			out[r.EmployeeID] = r.SupervisionDate
		}
	}
	return out, nil
}

func (f *fakeStore) versionsOf(employeeID string) []RequirementVersion {
	var out []RequirementVersion
	for _, v := range f.versions {
		if v.EmployeeID == employeeID {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeStore) RequiredCountFor(_ context.Context, employeeID string, month compliance.Period) (int, error) {
	return RequiredCountFor(f.versionsOf(employeeID), month), nil
}

func (f *fakeStore) ListRequirements(_ context.Context, filter scope.EmployeeFilter) ([]RequirementVersion, error) {
	out := []RequirementVersion{}
	for _, v := range f.versions {
		if filter.Allows(v.EmployeeID) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveFrom.After(out[j].EffectiveFrom) })
	return out, nil
}

func (f *fakeStore) CreateRequirement(_ context.Context, v RequirementVersion, hook func(db.Querier, RequirementVersion, int64) error) (RequirementVersion, error) {
	for _, existing := range f.versionsOf(v.EmployeeID) {
		if existing.EffectiveFrom.Equal(v.EffectiveFrom) {
			return RequirementVersion{}, fmt.Errorf("%w: duplicate", sentinel.ErrConflict)
		}
	}
	v.ID = f.nextID("req")
	f.versions = append(f.versions, v)

	from := FirstGovernedPeriod(v.EffectiveFrom)
	var until *compliance.Period
	for _, other := range f.versionsOf(v.EmployeeID) {
		if other.EffectiveFrom.After(v.EffectiveFrom) {
			p := FirstGovernedPeriod(other.EffectiveFrom)
			if until == nil || p.Before(*until) {
				until = &p
			}
		}
	}
	var n int64
	for i, r := range f.records {
		if r.EmployeeID != v.EmployeeID || r.Period.Before(from) {
			continue
		}
		if until != nil && !r.Period.Before(*until) {
			continue
		}
		f.records[i].RequiredCount = v.RequiredCount
		n++
	}
	if err := hook(nil, v, n); err != nil {
		f.versions = f.versions[:len(f.versions)-1]
		return RequirementVersion{}, err
	}
	return v, nil
}

func (f *fakeStore) GetRequirement(_ context.Context, requirementID string) (RequirementVersion, error) {
	for _, v := range f.versions {
		if v.ID == requirementID {
			return v, nil
		}
	}
	return RequirementVersion{}, sentinel.ErrNotFound
}

// governedUntil mirrors the store: the first month of the next version after eff.
func (f *fakeStore) governedUntil(employeeID string, eff time.Time) *compliance.Period {
	var until *compliance.Period
	for _, other := range f.versionsOf(employeeID) {
		if other.EffectiveFrom.After(eff) {
			p := FirstGovernedPeriod(other.EffectiveFrom)
			if until == nil || p.Before(*until) {
				until = &p
			}
		}
	}
	return until
}

func (f *fakeStore) resnapshot(employeeID string, from compliance.Period, until *compliance.Period) int64 {
	var n int64
	for i, r := range f.records {
		if r.EmployeeID != employeeID || r.Period.Before(from) {
			continue
		}
		if until != nil && !r.Period.Before(*until) {
			continue
		}
		f.records[i].RequiredCount = RequiredCountFor(f.versionsOf(employeeID), r.Period)
		n++
	}
	return n
}

func (f *fakeStore) UpdateRequirement(_ context.Context, v RequirementVersion, hook func(db.Querier, RequirementVersion, RequirementVersion, int64) error) (RequirementVersion, error) {
	idx := -1
	for i, existing := range f.versions {
		if existing.ID == v.ID {
			idx = i
		}
	}
	if idx < 0 {
		return RequirementVersion{}, sentinel.ErrNotFound
	}
	before := f.versions[idx]
	for _, other := range f.versionsOf(before.EmployeeID) {
		if other.ID != v.ID && other.EffectiveFrom.Equal(v.EffectiveFrom) {
			return RequirementVersion{}, fmt.Errorf("%w: duplicate", sentinel.ErrConflict)
		}
	}
	after := before
	after.EffectiveFrom, after.RequiredCount = v.EffectiveFrom, v.RequiredCount
	f.versions[idx] = after

	from := FirstGovernedPeriod(before.EffectiveFrom)
	if p := FirstGovernedPeriod(after.EffectiveFrom); p.Before(from) {
		from = p
	}
	latest := before.EffectiveFrom
	if after.EffectiveFrom.After(latest) {
		latest = after.EffectiveFrom
	}
	n := f.resnapshot(after.EmployeeID, from, f.governedUntil(after.EmployeeID, latest))
	if err := hook(nil, before, after, n); err != nil {
		return RequirementVersion{}, err
	}
	return after, nil
}

func (f *fakeStore) DeleteRequirement(_ context.Context, requirementID string, hook func(db.Querier, RequirementVersion, int64) error) error {
	for i, v := range f.versions {
		if v.ID == requirementID {
			f.versions = append(f.versions[:i], f.versions[i+1:]...)
			n := f.resnapshot(v.EmployeeID, FirstGovernedPeriod(v.EffectiveFrom), f.governedUntil(v.EmployeeID, v.EffectiveFrom))
			return hook(nil, v, n)
		}
	}
	return sentinel.ErrNotFound
}

func (f *fakeStore) UpdateRequiredCount(_ context.Context, employeeID string, month compliance.Period, count int, hook func(db.Querier, int64) error) (int64, error) {
	var n int64
	for i, r := range f.records {
		if r.EmployeeID == employeeID && r.Period == month {
			f.records[i].RequiredCount = count
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, hook(nil, n)
}

func (f *fakeStore) CreateException(_ context.Context, ex Exception, hook func(db.Querier, Exception) error) (Exception, error) {
	for _, x := range f.exceptions {
		if x.EmployeeID == ex.EmployeeID && x.Period == ex.Period {
			return Exception{}, fmt.Errorf("%w: an exception for %s already exists", sentinel.ErrConflict, ex.Period)
		}
	}
	ex.ID = f.nextID("exc")
	if err := hook(nil, ex); err != nil {
		return Exception{}, err
	}
	f.exceptions = append(f.exceptions, ex)
	return ex, nil
}

func (f *fakeStore) GetException(_ context.Context, exceptionID string) (Exception, error) {
	for _, x := range f.exceptions {
		if x.ID == exceptionID {
			return x, nil
		}
	}
	return Exception{}, sentinel.ErrNotFound
}

func (f *fakeStore) ListExceptions(_ context.Context, filter ExceptionFilter) ([]Exception, error) {
	out := []Exception{}
	for _, x := range f.exceptions {
		if filter.EmployeeID != "" && x.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.EmployeeIDs != nil && !(scope.EmployeeFilter{IDs: filter.EmployeeIDs}).Allows(x.EmployeeID) {
			continue
		}
		if !filter.FromPeriod.IsZero() && x.Period.Before(filter.FromPeriod) {
			continue
		}
		if !filter.ToPeriod.IsZero() && x.Period.After(filter.ToPeriod) {
			continue
		}
		out = append(out, x)
	}
	return out, nil
}

func (f *fakeStore) DeleteException(_ context.Context, exceptionID string, hook func(db.Querier, Exception) error) error {
	for i, x := range f.exceptions {
		if x.ID == exceptionID {
			if err := hook(nil, x); err != nil {
				return err
			}
			f.exceptions = append(f.exceptions[:i], f.exceptions[i+1:]...)
			return nil
		}
	}
	return sentinel.ErrNotFound
}

var _ StoreAPI = (*fakeStore)(nil)
