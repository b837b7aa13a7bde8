package supervision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/db"
	"employeehub/internal/platform/sentinel"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

const recordColumns = `r.id::text, r.employee_id::text, e.first_name || ' ' || e.last_name,
       r.conducted_by_id::text, c.first_name || ' ' || c.last_name, r.supervision_date, r.period::text,
       COALESCE(r.notes, ''), r.is_completed, r.required_count, r.created_at, r.updated_at`

const recordFrom = ` FROM supervision_records r
      JOIN employees e ON e.id = r.employee_id
      JOIN employees c ON c.id = r.conducted_by_id`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.EmployeeID, &r.EmployeeName, &r.ConductedByID, &r.ConductedByName,
		&r.SupervisionDate, &r.Period, &r.Notes, &r.IsCompleted, &r.RequiredCount, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func getRecord(ctx context.Context, q db.Querier, recordID string, forUpdate bool) (Record, error) {
	query := "SELECT " + recordColumns + recordFrom + " WHERE r.id = $1"
	if forUpdate {
		query += " FOR UPDATE OF r"
	}
	r, err := scanRecord(q.QueryRow(ctx, query, recordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("supervision record %s: %w", recordID, sentinel.ErrNotFound)
	}
	return r, err
}

func (s *Store) GetRecord(ctx context.Context, recordID string) (Record, error) {
	return getRecord(ctx, s.DB, recordID, false)
}

func (s *Store) CreateRecord(ctx context.Context, rec Record, hook func(db.Querier, Record) error) (Record, error) {
	var out Record
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
      INSERT INTO supervision_records (employee_id, conducted_by_id, supervision_date, period, notes, is_completed, required_count)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
      RETURNING id::text
    `, rec.EmployeeID, rec.ConductedByID, rec.SupervisionDate, rec.Period.String(), nullIfEmpty(rec.Notes), rec.IsCompleted, rec.RequiredCount).Scan(&id)
		if err != nil {
			return err
		}
		saved, err := getRecord(ctx, tx, id, false)
		if err != nil {
			return err
		}
		out = saved
		return hook(tx, saved)
	})
	return out, err
}

func (s *Store) UpdateRecord(ctx context.Context, rec Record, hook func(q db.Querier, before, after Record) error) (Record, error) {
	var out Record
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		before, err := getRecord(ctx, tx, rec.ID, true)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
      UPDATE supervision_records
      SET conducted_by_id = $2, supervision_date = $3, period = $4, notes = $5,
          is_completed = $6, required_count = $7, updated_at = now()
      WHERE id = $1
    `, rec.ID, rec.ConductedByID, rec.SupervisionDate, rec.Period.String(), nullIfEmpty(rec.Notes), rec.IsCompleted, rec.RequiredCount)
		if err != nil {
			return err
		}
		after, err := getRecord(ctx, tx, rec.ID, false)
		if err != nil {
			return err
		}
		out = after
		return hook(tx, before, after)
	})
	return out, err
}

func (s *Store) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	var (
		conds []string
		args  []any
	)
	if !filter.Employees.All {
		if len(filter.Employees.IDs) == 0 {
			return []Record{}, nil
		}
		args = append(args, filter.Employees.IDs)
		conds = append(conds, fmt.Sprintf("r.employee_id::text = ANY($%d)", len(args)))
	}
	if filter.ConductedByID != "" {
		args = append(args, filter.ConductedByID)
		conds = append(conds, fmt.Sprintf("r.conducted_by_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.String())
		conds = append(conds, fmt.Sprintf("r.period::text >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.String())
		conds = append(conds, fmt.Sprintf("r.period::text <= $%d", len(args)))
	}
	query := "SELECT " + recordColumns + recordFrom
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY r.supervision_date DESC, r.created_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRecord(ctx context.Context, recordID string, hook func(db.Querier, Record) error) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		old, err := getRecord(ctx, tx, recordID, true)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM supervision_records WHERE id = $1", recordID); err != nil {
			return err
		}
		return hook(tx, old)
	})
}

// LastSupervisionDates returns the most recent completed supervision per
// employee. Employees never supervised are absent from the map.
func (s *Store) LastSupervisionDates(ctx context.Context, filter scope.EmployeeFilter) (map[string]time.Time, error) {
	query := "SELECT employee_id::text, MAX(supervision_date) FROM supervision_records WHERE is_completed"
	var args []any
	if !filter.All {
		if len(filter.IDs) == 0 {
			return map[string]time.Time{}, nil
		}
		query += " AND employee_id::text = ANY($1)"
		args = append(args, filter.IDs)
	}
	query += " GROUP BY employee_id"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]time.Time{}
	for rows.Next() {
		var (
			id   string
			last time.Time
		)
		if err := rows.Scan(&id, &last); err != nil {
			return nil, err
		}
		out[id] = last
	}
	return out, rows.Err()
}

func (s *Store) RequiredCountFor(ctx context.Context, employeeID string, month compliance.Period) (int, error) {
	return requiredCountFor(ctx, s.DB, employeeID, month)
}

func requiredCountFor(ctx context.Context, q db.Querier, employeeID string, month compliance.Period) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
    SELECT required_count
    FROM supervision_requirements
    WHERE employee_id = $1 AND effective_from <= $2
    ORDER BY effective_from DESC
    LIMIT 1
  `, employeeID, month.Start()).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultRequiredCount, nil
	}
	return count, err
}

const requirementColumns = "id::text, employee_id::text, effective_from, required_count, created_at"

func (s *Store) ListRequirements(ctx context.Context, filter scope.EmployeeFilter) ([]RequirementVersion, error) {
	query := "SELECT " + requirementColumns + " FROM supervision_requirements"
	var args []any
	if !filter.All {
		if len(filter.IDs) == 0 {
			return []RequirementVersion{}, nil
		}
		query += " WHERE employee_id::text = ANY($1)"
		args = append(args, filter.IDs)
	}
	query += " ORDER BY employee_id, effective_from DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RequirementVersion{}
	for rows.Next() {
		var v RequirementVersion
		if err := rows.Scan(&v.ID, &v.EmployeeID, &v.EffectiveFrom, &v.RequiredCount, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CreateRequirement inserts a version and re-snapshots required_count on the
// employee's records from the first month it governs up to the month the
// next later version takes over.
func (s *Store) CreateRequirement(ctx context.Context, v RequirementVersion, hook func(q db.Querier, v RequirementVersion, resnapshotted int64) error) (RequirementVersion, error) {
	var out RequirementVersion
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
      INSERT INTO supervision_requirements (employee_id, effective_from, required_count)
      VALUES ($1,$2,$3)
      RETURNING `+requirementColumns,
			v.EmployeeID, v.EffectiveFrom, v.RequiredCount,
		).Scan(&out.ID, &out.EmployeeID, &out.EffectiveFrom, &out.RequiredCount, &out.CreatedAt)
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: a requirement effective %s already exists", sentinel.ErrConflict, v.EffectiveFrom.Format("2006-01-02"))
		}
		if err != nil {
			return err
		}

		until, err := governedUntil(ctx, tx, v.EmployeeID, v.EffectiveFrom)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
      UPDATE supervision_records
      SET required_count = $2, updated_at = now()
      WHERE employee_id = $1
        AND period::text >= $3
        AND ($4::text IS NULL OR period::text < $4)
    `, v.EmployeeID, v.RequiredCount, FirstGovernedPeriod(v.EffectiveFrom).String(), until)
		if err != nil {
			return err
		}
		return hook(tx, out, tag.RowsAffected())
	})
	return out, err
}

// governedUntil returns the first month governed by the employee's next
// version after eff, or nil when none follows.
func governedUntil(ctx context.Context, q db.Querier, employeeID string, eff time.Time) (*string, error) {
	var next time.Time
	err := q.QueryRow(ctx, `
    SELECT effective_from FROM supervision_requirements
    WHERE employee_id = $1 AND effective_from > $2
    ORDER BY effective_from
    LIMIT 1
  `, employeeID, eff).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := FirstGovernedPeriod(next).String()
	return &p, nil
}

// resnapshot recomputes required_count for the employee's records in
// [from, until) from the versions currently stored.
func resnapshot(ctx context.Context, q db.Querier, employeeID string, from compliance.Period, until *string) (int64, error) {
	tag, err := q.Exec(ctx, `
    UPDATE supervision_records r
    SET required_count = COALESCE((
          SELECT v.required_count FROM supervision_requirements v
          WHERE v.employee_id = r.employee_id AND v.effective_from <= to_date(r.period, 'YYYY-MM')
          ORDER BY v.effective_from DESC
          LIMIT 1
        ), $4),
        updated_at = now()
    WHERE r.employee_id = $1
      AND r.period::text >= $2
      AND ($3::text IS NULL OR r.period::text < $3)
  `, employeeID, from.String(), until, DefaultRequiredCount)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func getRequirement(ctx context.Context, q db.Querier, requirementID string, forUpdate bool) (RequirementVersion, error) {
	query := "SELECT " + requirementColumns + " FROM supervision_requirements WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var v RequirementVersion
	err := q.QueryRow(ctx, query, requirementID).Scan(&v.ID, &v.EmployeeID, &v.EffectiveFrom, &v.RequiredCount, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RequirementVersion{}, fmt.Errorf("supervision requirement %s: %w", requirementID, sentinel.ErrNotFound)
	}
	return v, err
}

func (s *Store) GetRequirement(ctx context.Context, requirementID string) (RequirementVersion, error) {
	return getRequirement(ctx, s.DB, requirementID, false)
}

// UpdateRequirement rewrites a version and re-snapshots every month whose
// governing version may have changed: from the earlier of the old and new
// first governed months up to the next later version.
func (s *Store) UpdateRequirement(ctx context.Context, v RequirementVersion, hook func(q db.Querier, before, after RequirementVersion, resnapshotted int64) error) (RequirementVersion, error) {
	var out RequirementVersion
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		before, err := getRequirement(ctx, tx, v.ID, true)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
      UPDATE supervision_requirements
      SET effective_from = $2, required_count = $3, updated_at = now()
      WHERE id = $1
      RETURNING `+requirementColumns,
			v.ID, v.EffectiveFrom, v.RequiredCount,
		).Scan(&out.ID, &out.EmployeeID, &out.EffectiveFrom, &out.RequiredCount, &out.CreatedAt)
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: a requirement effective %s already exists", sentinel.ErrConflict, v.EffectiveFrom.Format("2006-01-02"))
		}
		if err != nil {
			return err
		}

		from := FirstGovernedPeriod(before.EffectiveFrom)
		if p := FirstGovernedPeriod(out.EffectiveFrom); p.Before(from) {
			from = p
		}
		latest := before.EffectiveFrom
		if out.EffectiveFrom.After(latest) {
			latest = out.EffectiveFrom
		}
		until, err := governedUntil(ctx, tx, out.EmployeeID, latest)
		if err != nil {
			return err
		}
		affected, err := resnapshot(ctx, tx, out.EmployeeID, from, until)
		if err != nil {
			return err
		}
		return hook(tx, before, out, affected)
	})
	return out, err
}

// DeleteRequirement removes a version. Months it governed fall back to the
// previous version, or the default count when there is none.
func (s *Store) DeleteRequirement(ctx context.Context, requirementID string, hook func(q db.Querier, old RequirementVersion, resnapshotted int64) error) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		old, err := getRequirement(ctx, tx, requirementID, true)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM supervision_requirements WHERE id = $1", requirementID); err != nil {
			return err
		}
		until, err := governedUntil(ctx, tx, old.EmployeeID, old.EffectiveFrom)
		if err != nil {
			return err
		}
		affected, err := resnapshot(ctx, tx, old.EmployeeID, FirstGovernedPeriod(old.EffectiveFrom), until)
		if err != nil {
			return err
		}
		return hook(tx, old, affected)
	})
}

func (s *Store) UpdateRequiredCount(ctx context.Context, employeeID string, month compliance.Period, count int, hook func(q db.Querier, affected int64) error) (int64, error) {
	var affected int64
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
      UPDATE supervision_records
      SET required_count = $3, updated_at = now()
      WHERE employee_id = $1 AND period = $2
    `, employeeID, month.String(), count)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		if affected == 0 {
			return nil
		}
		return hook(tx, affected)
	})
	return affected, err
}

const exceptionColumns = `x.id::text, x.employee_id::text, e.first_name || ' ' || e.last_name, x.period::text,
       x.exception_type, COALESCE(x.notes, ''), x.created_by::text, x.created_at`

const exceptionFrom = " FROM supervision_exceptions x JOIN employees e ON e.id = x.employee_id"

func scanException(row pgx.Row) (Exception, error) {
	var x Exception
	err := row.Scan(&x.ID, &x.EmployeeID, &x.EmployeeName, &x.Period, &x.ExceptionType, &x.Notes, &x.CreatedBy, &x.CreatedAt)
	return x, err
}

func getException(ctx context.Context, q db.Querier, exceptionID string, forUpdate bool) (Exception, error) {
	query := "SELECT " + exceptionColumns + exceptionFrom + " WHERE x.id = $1"
	if forUpdate {
		query += " FOR UPDATE OF x"
	}
	x, err := scanException(q.QueryRow(ctx, query, exceptionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Exception{}, fmt.Errorf("supervision exception %s: %w", exceptionID, sentinel.ErrNotFound)
	}
	return x, err
}

func (s *Store) GetException(ctx context.Context, exceptionID string) (Exception, error) {
	return getException(ctx, s.DB, exceptionID, false)
}

// CreateException relies on the (employee_id, period) unique key. A
// duplicate is reported as a conflict and never retried.
func (s *Store) CreateException(ctx context.Context, ex Exception, hook func(db.Querier, Exception) error) (Exception, error) {
	var out Exception
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
      INSERT INTO supervision_exceptions (employee_id, period, exception_type, notes, created_by)
      VALUES ($1,$2,$3,$4,$5)
      RETURNING id::text
    `, ex.EmployeeID, ex.Period.String(), string(ex.ExceptionType), nullIfEmpty(ex.Notes), ex.CreatedBy).Scan(&id)
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: an exception for %s already exists", sentinel.ErrConflict, ex.Period)
		}
		if err != nil {
			return err
		}
		saved, err := getException(ctx, tx, id, false)
		if err != nil {
			return err
		}
		out = saved
		return hook(tx, saved)
	})
	return out, err
}

func (s *Store) ListExceptions(ctx context.Context, filter ExceptionFilter) ([]Exception, error) {
	var (
		conds []string
		args  []any
	)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conds = append(conds, fmt.Sprintf("x.employee_id::text = $%d", len(args)))
	}
	if filter.EmployeeIDs != nil {
		if len(filter.EmployeeIDs) == 0 {
			return []Exception{}, nil
		}
		args = append(args, filter.EmployeeIDs)
		conds = append(conds, fmt.Sprintf("x.employee_id::text = ANY($%d)", len(args)))
	}
	if !filter.FromPeriod.IsZero() {
		args = append(args, filter.FromPeriod.String())
		conds = append(conds, fmt.Sprintf("x.period::text >= $%d", len(args)))
	}
	if !filter.ToPeriod.IsZero() {
		args = append(args, filter.ToPeriod.String())
		conds = append(conds, fmt.Sprintf("x.period::text <= $%d", len(args)))
	}
	query := "SELECT " + exceptionColumns + exceptionFrom
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY x.period DESC, e.last_name, e.first_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Exception{}
	for rows.Next() {
		x, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

func (s *Store) DeleteException(ctx context.Context, exceptionID string, hook func(db.Querier, Exception) error) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		old, err := getException(ctx, tx, exceptionID, true)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM supervision_exceptions WHERE id = $1", exceptionID); err != nil {
			return err
		}
		return hook(tx, old)
	})
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
