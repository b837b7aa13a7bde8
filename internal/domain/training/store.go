package training

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const courseColumns = `id::text, name, category, validity_months, expiry_warning_days,
       notify_employee, notify_admin, mandatory_for_roles, created_at, updated_at`

func scanCourse(row pgx.Row) (Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.Name, &c.Category, &c.ValidityMonths, &c.ExpiryWarningDays,
		&c.NotifyEmployee, &c.NotifyAdmin, &c.MandatoryForRoles, &c.CreatedAt, &c.UpdatedAt)
	if c.MandatoryForRoles == nil {
		c.MandatoryForRoles = []string{}
	}
	return c, err
}

func (s *Store) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+courseColumns+" FROM training_courses ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCourse(ctx context.Context, courseID string) (Course, error) {
	return getCourse(ctx, s.DB, courseID, false)
}

func getCourse(ctx context.Context, q db.Querier, courseID string, forUpdate bool) (Course, error) {
	query := "SELECT " + courseColumns + " FROM training_courses WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	c, err := scanCourse(q.QueryRow(ctx, query, courseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, fmt.Errorf("training course %s: %w", courseID, sentinel.ErrNotFound)
	}
	return c, err
}

func (s *Store) CreateCourse(ctx context.Context, in CourseInput, hook func(db.Querier, Course) error) (Course, error) {
	var out Course
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		c, err := scanCourse(tx.QueryRow(ctx, `
      INSERT INTO training_courses (name, category, validity_months, expiry_warning_days, notify_employee, notify_admin, mandatory_for_roles)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
      RETURNING `+courseColumns,
			in.Name, in.Category, in.ValidityMonths, in.ExpiryWarningDays, in.NotifyEmployee, in.NotifyAdmin, rolesOrEmpty(in.MandatoryForRoles)))
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("training course %q: %w", in.Name, sentinel.ErrConflict)
		}
		if err != nil {
			return err
		}
		out = c
		return hook(tx, c)
	})
	return out, err
}

func (s *Store) UpdateCourse(ctx context.Context, courseID string, in CourseInput, hook func(q db.Querier, before, after Course) error) (Course, error) {
	var out Course
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		before, err := getCourse(ctx, tx, courseID, true)
		if err != nil {
			return err
		}
		after, err := scanCourse(tx.QueryRow(ctx, `
      UPDATE training_courses
      SET name = $2, category = $3, validity_months = $4, expiry_warning_days = $5,
          notify_employee = $6, notify_admin = $7, mandatory_for_roles = $8, updated_at = now()
      WHERE id = $1
      RETURNING `+courseColumns,
			courseID, in.Name, in.Category, in.ValidityMonths, in.ExpiryWarningDays, in.NotifyEmployee, in.NotifyAdmin, rolesOrEmpty(in.MandatoryForRoles)))
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("training course %q: %w", in.Name, sentinel.ErrConflict)
		}
		if err != nil {
			return err
		}
		out = after
		return hook(tx, before, after)
	})
	return out, err
}

const recordColumns = `r.id::text, r.employee_id::text, r.course_id::text, c.name, r.completion_date, r.expiry_date,
       COALESCE(r.certificate_url, ''), COALESCE(r.notes, ''), r.created_at, r.updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.EmployeeID, &r.CourseID, &r.CourseName, &r.CompletionDate, &r.ExpiryDate,
		&r.CertificateURL, &r.Notes, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *Store) CreateRecord(ctx context.Context, rec Record, hook func(db.Querier, Record) error) (Record, error) {
	var out Record
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
      INSERT INTO training_records (employee_id, course_id, completion_date, expiry_date, certificate_url, notes)
      VALUES ($1,$2,$3,$4,$5,$6)
      RETURNING id::text
    `, rec.EmployeeID, rec.CourseID, rec.CompletionDate, rec.ExpiryDate, nullIfEmpty(rec.CertificateURL), nullIfEmpty(rec.Notes)).Scan(&id)
		if err != nil {
			return err
		}
		saved, err := getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		out = saved
		return hook(tx, saved)
	})
	return out, err
}

func (s *Store) ListRecords(ctx context.Context, employeeID string) ([]Record, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+recordColumns+`
    FROM training_records r
    JOIN training_courses c ON c.id = r.course_id
    WHERE r.employee_id = $1
    ORDER BY r.completion_date DESC
  `, employeeID)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (s *Store) GetRecord(ctx context.Context, recordID string) (Record, error) {
	return getRecord(ctx, s.DB, recordID)
}

func getRecord(ctx context.Context, q db.Querier, recordID string) (Record, error) {
	r, err := scanRecord(q.QueryRow(ctx, `
    SELECT `+recordColumns+`
    FROM training_records r
    JOIN training_courses c ON c.id = r.course_id
    WHERE r.id = $1
  `, recordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("training record %s: %w", recordID, sentinel.ErrNotFound)
	}
	return r, err
}

func (s *Store) DeleteRecord(ctx context.Context, recordID string, hook func(db.Querier, Record) error) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		old, err := getRecord(ctx, tx, recordID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM training_records WHERE id = $1", recordID); err != nil {
			return err
		}
		return hook(tx, old)
	})
}

// LatestRecords returns the most recent completion per employee and course.
func (s *Store) LatestRecords(ctx context.Context, filter scope.EmployeeFilter) ([]Record, error) {
	query := `
    SELECT DISTINCT ON (r.employee_id, r.course_id) ` + recordColumns + `
    FROM training_records r
    JOIN training_courses c ON c.id = r.course_id`
	var args []any
	if !filter.All {
		if len(filter.IDs) == 0 {
			return []Record{}, nil
		}
		query += " WHERE r.employee_id::text = ANY($1)"
		args = append(args, filter.IDs)
	}
	query += " ORDER BY r.employee_id, r.course_id, r.completion_date DESC, r.created_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
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

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func rolesOrEmpty(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}

var _ StoreAPI = (*Store)(nil)
