package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/shared"
)

// Store defines persistence operations for the access log.
type Store interface {
	Sink
	ListAccessLogs(ctx context.Context, filters ListFilters, offset, limit int) ([]AccessLogEntry, error)
	CountAccessLogs(ctx context.Context, filters ListFilters) (int, error)
	FindAccessLog(ctx context.Context, id string) (AccessLogEntry, error)
	DeleteAccessLog(ctx context.Context, id string) error
	PurgeAccessLogs(ctx context.Context, before time.Time) (int64, error)
}

// PGRepository implements Store using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var sortColumns = map[string]string{
	"createdAt": "l.created_at",
	"ipAddress": "l.ip_address",
	"userAgent": "l.user_agent",
	"origin":    "l.origin",
}

const logColumns = `l.id::text, l.token, l.ip_address, l.user_agent, l.origin, l.referrer, l.request_body,
	l.user_id::text, l.created_at, u.name, u.surname, u.email`

const logFrom = ` FROM request_logs l LEFT JOIN users u ON u.id = l.user_id`

// InsertAccessLog appends entry. It is a single independent insert.
func (r *PGRepository) InsertAccessLog(ctx context.Context, entry AccessLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO request_logs (id, token, ip_address, user_agent, origin, referrer, request_body, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Token, entry.IPAddress, entry.UserAgent, entry.Origin, entry.Referrer,
		entry.RequestBody, entry.UserID, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: insert access log: %w", err)
	}
	return nil
}

// ListAccessLogs returns a filtered window of entries with their principal.
func (r *PGRepository) ListAccessLogs(ctx context.Context, filters ListFilters, offset, limit int) ([]AccessLogEntry, error) {
	where, args := buildWhere(filters)
	column, ok := sortColumns[filters.SortBy]
	if !ok {
		column = "l.created_at"
	}
	dir := "ASC"
	if filters.SortDesc {
		dir = "DESC"
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s%s%s ORDER BY %s %s, l.id LIMIT $%d OFFSET $%d`,
		logColumns, logFrom, where, column, dir, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapQueryError(err)
	}
	defer rows.Close()
	logs := make([]AccessLogEntry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, mapQueryError(rows.Err())
}

// CountAccessLogs counts entries matching filters.
func (r *PGRepository) CountAccessLogs(ctx context.Context, filters ListFilters) (int, error) {
	where, args := buildWhere(filters)
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+logFrom+where, args...).Scan(&n)
	return n, mapQueryError(err)
}

// FindAccessLog fetches one entry.
func (r *PGRepository) FindAccessLog(ctx context.Context, id string) (AccessLogEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return AccessLogEntry{}, shared.ErrNotFound
	}
	return scanEntry(r.pool.QueryRow(ctx, `SELECT `+logColumns+logFrom+` WHERE l.id = $1`, id))
}

// DeleteAccessLog removes one entry.
func (r *PGRepository) DeleteAccessLog(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM request_logs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// PurgeAccessLogs removes entries created before the cut-off.
func (r *PGRepository) PurgeAccessLogs(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM request_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func buildWhere(filters ListFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if ip := strings.TrimSpace(filters.IP); ip != "" {
		args = append(args, ip)
		clauses = append(clauses, fmt.Sprintf("l.ip_address ~* $%d", len(args)))
	}
	if userID := strings.TrimSpace(filters.UserID); userID != "" {
		if _, err := uuid.Parse(userID); err == nil {
			args = append(args, userID)
			clauses = append(clauses, fmt.Sprintf("l.user_id = $%d", len(args)))
		}
	}
	if body := strings.TrimSpace(filters.Body); body != "" {
		args = append(args, body)
		clauses = append(clauses, fmt.Sprintf("l.request_body ~* $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanEntry(row pgx.Row) (AccessLogEntry, error) {
	var (
		entry                AccessLogEntry
		userAgent, origin    *string
		referrer, body       *string
		name, surname, email *string
	)
	if err := row.Scan(&entry.ID, &entry.Token, &entry.IPAddress, &userAgent, &origin, &referrer, &body,
		&entry.UserID, &entry.CreatedAt, &name, &surname, &email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessLogEntry{}, shared.ErrNotFound
		}
		return AccessLogEntry{}, err
	}
	entry.UserAgent = deref(userAgent)
	entry.Origin = deref(origin)
	entry.Referrer = deref(referrer)
	entry.RequestBody = deref(body)
	if entry.UserID != nil && email != nil {
		entry.User = &LogUser{ID: *entry.UserID, Name: deref(name), Surname: deref(surname), Email: *email}
	}
	return entry, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// mapQueryError turns a rejected filter pattern into a validation error.
func mapQueryError(err error) error {
	if db.IsInvalidRegexp(err) {
		return shared.NewValidationError("filter", "invalid regular expression")
	}
	return err
}

var _ Store = (*PGRepository)(nil)
