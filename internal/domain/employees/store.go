package employees

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"employeehub/internal/domain/scope"
	"employeehub/internal/platform/sentinel"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const employeeColumns = `id::text, first_name, last_name, COALESCE(email, ''), role, COALESCE(department, ''),
       start_date, active, reports_to::text, status, supervision_frequency_months`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Role, &e.Department,
		&e.StartDate, &e.Active, &e.ReportsTo, &e.Status, &e.SupervisionFrequencyMonths)
	return e, err
}

func (s *Store) Get(ctx context.Context, employeeID string) (Employee, error) {
	e, err := scanEmployee(s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, fmt.Errorf("employee %s: %w", employeeID, sentinel.ErrNotFound)
	}
	return e, err
}

// ListActive returns active employees allowed by filter, ordered by name.
func (s *Store) ListActive(ctx context.Context, filter scope.EmployeeFilter) ([]Employee, error) {
	query := "SELECT " + employeeColumns + " FROM employees WHERE active = true"
	var args []any
	if !filter.All {
		if len(filter.IDs) == 0 {
			return []Employee{}, nil
		}
		query += " AND id::text = ANY($1)"
		args = append(args, filter.IDs)
	}
	query += " ORDER BY last_name, first_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ManagerOf(ctx context.Context, employeeID string) (string, error) {
	var manager *string
	err := s.DB.QueryRow(ctx, "SELECT reports_to::text FROM employees WHERE id::text = $1", employeeID).Scan(&manager)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if manager == nil {
		return "", nil
	}
	return *manager, nil
}

// DirectReportIDs includes deactivated employees, matching ManagerOf: the
// reporting line outlives employment so a manager keeps access to a leaver's
// history. Compliance views drop inactive rows through ListActive.
func (s *Store) DirectReportIDs(ctx context.Context, managerID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id::text FROM employees WHERE reports_to::text = $1 ORDER BY id", managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

var _ scope.HierarchyStore = (*Store)(nil)
