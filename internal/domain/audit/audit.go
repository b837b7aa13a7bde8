package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"employeehub/internal/platform/db"
	"employeehub/internal/platform/metrics"
	"employeehub/internal/requestctx"
)

const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Entry is one audited change. Old and New are marshalled to JSON.
type Entry struct {
	TableName   string
	RecordID    string
	Action      string
	ActorUserID string
	Old         any
	New         any
}

type Event struct {
	ID          string          `json:"id"`
	TableName   string          `json:"tableName"`
	RecordID    string          `json:"recordId"`
	Action      string          `json:"action"`
	ActorUserID string          `json:"actorUserId"`
	RequestID   string          `json:"requestId"`
	IP          string          `json:"ip"`
	CreatedAt   time.Time       `json:"createdAt"`
	OldData     json.RawMessage `json:"oldData,omitempty"`
	NewData     json.RawMessage `json:"newData,omitempty"`
}

type Filter struct {
	TableName string
	RecordID  string
	Action    string
	ActorUser string
}

// Publisher fans audit events out once the row is committed.
type Publisher interface {
	Publish(ctx context.Context, kind, key string, payload []byte) error
}

type Service struct {
	DB        *pgxpool.Pool
	publisher Publisher
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(pool *pgxpool.Pool, opts ...Option) *Service {
	s := &Service{DB: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewEvent stamps an entry with the request id and client ip from ctx.
func NewEvent(ctx context.Context, e Entry) (Event, error) {
	evt := Event{
		TableName:   e.TableName,
		RecordID:    e.RecordID,
		Action:      e.Action,
		ActorUserID: e.ActorUserID,
		RequestID:   requestctx.GetRequestID(ctx),
		IP:          requestctx.GetClientIP(ctx),
	}
	if e.Old != nil {
		payload, err := json.Marshal(e.Old)
		if err != nil {
			return Event{}, fmt.Errorf("marshal old data: %w", err)
		}
		evt.OldData = payload
	}
	if e.New != nil {
		payload, err := json.Marshal(e.New)
		if err != nil {
			return Event{}, fmt.Errorf("marshal new data: %w", err)
		}
		evt.NewData = payload
	}
	return evt, nil
}

// Record inserts the audit row through q. Pass the write's transaction so the
// change and its audit row commit together.
func (s *Service) Record(ctx context.Context, q db.Querier, e Entry) (Event, error) {
	evt, err := NewEvent(ctx, e)
	if err != nil {
		return Event{}, err
	}
	err = q.QueryRow(ctx, `
    INSERT INTO audit_log (table_name, record_id, action, actor_user_id, old_data, new_data, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING id, created_at
  `, evt.TableName, evt.RecordID, evt.Action, evt.ActorUserID, nullJSON(evt.OldData), nullJSON(evt.NewData), evt.RequestID, evt.IP).
		Scan(&evt.ID, &evt.CreatedAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert audit row: %w", err)
	}
	return evt, nil
}

// Publish forwards a committed event to the configured stream. The audit_log
// row is authoritative, so a failed publish is logged and counted only.
func (s *Service) Publish(ctx context.Context, evt Event) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("audit publish marshal failed", "err", err, "table", evt.TableName)
		return
	}
	if err := s.publisher.Publish(ctx, "audit."+evt.TableName, evt.RecordID, payload); err != nil {
		s.metrics.IncAuditPublishFailure()
		slog.Warn("audit publish failed", "err", err, "table", evt.TableName, "record_id", evt.RecordID)
	}
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	selectCols := "id, table_name, record_id, action, actor_user_id, request_id, ip, created_at"
	if includeDetails {
		selectCols += ", old_data, new_data"
	}
	query, args := buildBaseQuery("SELECT "+selectCols, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		dest := []any{&evt.ID, &evt.TableName, &evt.RecordID, &evt.Action, &evt.ActorUserID, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		if includeDetails {
			dest = append(dest, &evt.OldData, &evt.NewData)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_log WHERE 1=1"
	var args []any
	add := func(clause string, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}
	add("table_name = $%d", filter.TableName)
	add("record_id = $%d", filter.RecordID)
	add("action = $%d", filter.Action)
	add("actor_user_id = $%d", filter.ActorUser)
	return query, args
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// Recorder is what domain services need from the audit sink.
type Recorder interface {
	Record(ctx context.Context, q db.Querier, e Entry) (Event, error)
	Publish(ctx context.Context, evt Event)
}

var _ Recorder = (*Service)(nil)
