package accesslog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nerrad567/sentinel-core/internal/infrastructure/database"
)

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Repository defines the interface for access log persistence.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLRepository stores access log entries on SQLite or PostgreSQL.
type SQLRepository struct {
	db database.Querier
}

// NewRepository creates a new access log repository.
func NewRepository(db database.Querier) *SQLRepository {
	return &SQLRepository{db: db}
}

// Create inserts an entry. The ID and AccessTime are generated if empty.
func (r *SQLRepository) Create(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = "acc-" + ulid.Make().String()
	}
	if e.AccessTime.IsZero() {
		e.AccessTime = time.Now()
	}
	e.AccessTime = e.AccessTime.UTC().Truncate(time.Microsecond)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_logs (id, user_id, area, access_time, status, ip_address, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, nullableString(e.UserID), e.Area,
		e.AccessTime.Format(timeLayout), string(e.Status), e.IPAddress, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting access log: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so nullable columns store NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Area != "" {
		conditions = append(conditions, "area = ?")
		args = append(args, filter.Area)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM access_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting access logs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, user_id, area, access_time, status, ip_address, detail FROM access_logs %s ORDER BY access_time DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying access logs: %w", err)
	}
	defer rows.Close()

	logs := []Entry{}
	for rows.Next() {
		var e Entry
		var userID sql.NullString
		var accessTime, status string

		if err := rows.Scan(&e.ID, &userID, &e.Area, &accessTime, &status, &e.IPAddress, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning access log: %w", err)
		}

		e.UserID = userID.String
		e.Status = Status(status)

		t, err := time.Parse(timeLayout, accessTime)
		if err != nil {
			return nil, fmt.Errorf("parsing access log timestamp %q: %w", accessTime, err)
		}
		e.AccessTime = t

		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access logs: %w", err)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
