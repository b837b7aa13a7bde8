package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"employeehub/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

func (s *Store) WasSentSince(ctx context.Context, trainingRecordID, email, notificationType string, since time.Time) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM notification_log
      WHERE training_record_id = $1
        AND lower(recipient_email) = lower($2)
        AND notification_type = $3
        AND sent_at > $4
    )
  `, trainingRecordID, email, notificationType, since).Scan(&exists)
	return exists, err
}

func (s *Store) InsertLog(ctx context.Context, entry LogEntry) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO notification_log (training_record_id, employee_id, course_id, recipient_email, recipient_type, notification_type, sent_at, days_until_expiry)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, entry.TrainingRecordID, entry.EmployeeID, entry.CourseID, entry.RecipientEmail, entry.RecipientType,
		entry.NotificationType, entry.SentAt, entry.DaysUntilExpiry)
	return err
}

// AdminEmails lists active users holding the Admin role.
func (s *Store) AdminEmails(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.email
    FROM users u
    JOIN roles r ON r.id = u.role_id
    WHERE u.active = true AND r.name = 'Admin'
    ORDER BY u.email
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

func (s *Store) ListLog(ctx context.Context, filter LogFilter) ([]LogEntry, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conds = append(conds, fmt.Sprintf("n.employee_id::text = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("n.notification_type = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM notification_log n"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	rows, err := s.DB.Query(ctx, `
    SELECT n.id::text, n.training_record_id::text, n.employee_id::text,
           COALESCE(e.first_name || ' ' || e.last_name, ''), n.course_id::text, COALESCE(c.name, ''),
           n.recipient_email, n.recipient_type, n.notification_type, n.sent_at, n.days_until_expiry
    FROM notification_log n
    LEFT JOIN employees e ON e.id = n.employee_id
    LEFT JOIN training_courses c ON c.id = n.course_id`+where+fmt.Sprintf(`
    ORDER BY n.sent_at DESC
    LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.TrainingRecordID, &e.EmployeeID, &e.EmployeeName, &e.CourseID, &e.CourseName,
			&e.RecipientEmail, &e.RecipientType, &e.NotificationType, &e.SentAt, &e.DaysUntilExpiry); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (s *Store) ClearLog(ctx context.Context, hook func(q db.Querier, deleted int64) error) (int64, error) {
	var deleted int64
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM notification_log")
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return hook(tx, deleted)
	})
	return deleted, err
}
