package appraisal

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

// review_number is the milestone's chronological position for its employee.
const milestoneSelect = `
  SELECT m.id::text AS id, m.employee_id::text AS employee_id, e.first_name || ' ' || e.last_name AS employee_name,
         m.milestone_type,
         CAST(ROW_NUMBER() OVER (PARTITION BY m.employee_id ORDER BY m.due_date, m.milestone_type) AS INTEGER) AS review_number,
         m.due_date, m.completed_date, m.conducted_by_id::text AS conducted_by_id,
         CASE WHEN c.id IS NULL THEN NULL ELSE c.first_name || ' ' || c.last_name END AS conducted_by_name,
         COALESCE(m.notes, '') AS notes, m.created_at, m.updated_at
  FROM appraisal_milestones m
  JOIN employees e ON e.id = m.employee_id
  LEFT JOIN employees c ON c.id = m.conducted_by_id`

func scanMilestone(row pgx.Row) (Milestone, error) {
	var m Milestone
	err := row.Scan(&m.ID, &m.EmployeeID, &m.EmployeeName, &m.MilestoneType, &m.ReviewNumber,
		&m.DueDate, &m.CompletedDate, &m.ConductedByID, &m.ConductedByName, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func collect(rows pgx.Rows) ([]Milestone, error) {
	defer rows.Close()
	out := []Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// getMilestone numbers the row among its employee's milestones before
// narrowing to the requested id.
func getMilestone(ctx context.Context, q db.Querier, milestoneID string) (Milestone, error) {
	m, err := scanMilestone(q.QueryRow(ctx, `
    SELECT * FROM (`+milestoneSelect+`
      WHERE m.employee_id = (SELECT employee_id FROM appraisal_milestones WHERE id = $1)
    ) numbered
    WHERE id = $1::text
  `, milestoneID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Milestone{}, fmt.Errorf("appraisal milestone %s: %w", milestoneID, sentinel.ErrNotFound)
	}
	return m, err
}

func (s *Store) Get(ctx context.Context, milestoneID string) (Milestone, error) {
	return getMilestone(ctx, s.DB, milestoneID)
}

func (s *Store) Create(ctx context.Context, m Milestone, hook func(db.Querier, Milestone) error) (Milestone, error) {
	var out Milestone
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
      INSERT INTO appraisal_milestones (employee_id, milestone_type, due_date, completed_date, conducted_by_id, notes)
      VALUES ($1,$2,$3,$4,$5,$6)
      RETURNING id::text
    `, m.EmployeeID, string(m.MilestoneType), m.DueDate, m.CompletedDate, m.ConductedByID, nullIfEmpty(m.Notes)).Scan(&id)
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s milestone already exists", sentinel.ErrConflict, m.MilestoneType)
		}
		if err != nil {
			return err
		}
		saved, err := getMilestone(ctx, tx, id)
		if err != nil {
			return err
		}
		out = saved
		return hook(tx, saved)
	})
	return out, err
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID string) ([]Milestone, error) {
	rows, err := s.DB.Query(ctx, milestoneSelect+`
    WHERE m.employee_id = $1
    ORDER BY m.due_date, m.milestone_type`, employeeID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) List(ctx context.Context, filter scope.EmployeeFilter) ([]Milestone, error) {
	query := milestoneSelect
	var args []any
	if !filter.All {
		if len(filter.IDs) == 0 {
			return []Milestone{}, nil
		}
		query += " WHERE m.employee_id::text = ANY($1)"
		args = append(args, filter.IDs)
	}
	query += " ORDER BY m.employee_id, m.due_date, m.milestone_type"
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Update writes only the columns the patch sets. Values are always bound as
// parameters.
func (s *Store) Update(ctx context.Context, milestoneID string, patch MilestonePatch, hook func(q db.Querier, before, after Milestone) error) (Milestone, error) {
	var out Milestone
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT 1 FROM appraisal_milestones WHERE id = $1 FOR UPDATE", milestoneID); err != nil {
			return err
		}
		before, err := getMilestone(ctx, tx, milestoneID)
		if err != nil {
			return err
		}

		sets := []string{"updated_at = now()"}
		args := []any{milestoneID}
		add := func(column string, value any) {
			args = append(args, value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}
		if patch.DueDate.IsSet() {
			add("due_date", patch.DueDate.Ptr())
		}
		if patch.CompletedDate.IsSet() {
			add("completed_date", patch.CompletedDate.Ptr())
		}
		if patch.ConductedByID.IsSet() {
			add("conducted_by_id", patch.ConductedByID.Ptr())
		}
		if patch.Notes.IsSet() {
			notes, _ := patch.Notes.Get()
			add("notes", nullIfEmpty(notes))
		}
		if _, err := tx.Exec(ctx, "UPDATE appraisal_milestones SET "+strings.Join(sets, ", ")+" WHERE id = $1", args...); err != nil {
			return err
		}

		after, err := getMilestone(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		out = after
		return hook(tx, before, after)
	})
	return out, err
}

func (s *Store) Delete(ctx context.Context, milestoneID string, hook func(db.Querier, Milestone) error) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		old, err := getMilestone(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM appraisal_milestones WHERE id = $1", milestoneID); err != nil {
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
