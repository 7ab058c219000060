package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backoffice/backoffice/internal/auth"
	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// ListParams windows a user listing.
type ListParams struct {
	Offset   int
	Limit    int
	SortBy   string
	SortDesc bool
}

// Store defines the listing and lifecycle queries user administration needs
// on top of auth.Repository.
type Store interface {
	ListUsers(ctx context.Context, filters Filters, params ListParams) ([]auth.User, error)
	CountUsers(ctx context.Context, filters Filters) (int, error)
	Dropdown(ctx context.Context) ([]auth.User, error)
	FindManyByRoleID(ctx context.Context, roleID string) ([]auth.User, error)
	SoftDelete(ctx context.Context, id string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var sortColumns = map[string]string{
	"name":      "name",
	"surname":   "surname",
	"email":     "email",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// ListUsers returns a filtered window of live users.
func (r *Repository) ListUsers(ctx context.Context, filters Filters, params ListParams) ([]auth.User, error) {
	where, args := buildWhere(filters)
	column, ok := sortColumns[params.SortBy]
	if !ok {
		column = "created_at"
	}
	dir := "ASC"
	if params.SortDesc {
		dir = "DESC"
	}
	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		auth.UserColumns, where, column, dir, len(args)-1, len(args))
	users, err := r.query(ctx, query, args...)
	return users, mapQueryError(err)
}

// CountUsers counts live users matching filters.
func (r *Repository) CountUsers(ctx context.Context, filters Filters) (int, error) {
	where, args := buildWhere(filters)
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&n)
	return n, mapQueryError(err)
}

// Dropdown returns every live user ordered by name.
func (r *Repository) Dropdown(ctx context.Context) ([]auth.User, error) {
	return r.query(ctx, `SELECT `+auth.UserColumns+` FROM users WHERE deleted_at IS NULL ORDER BY name, surname, id`)
}

// FindManyByRoleID returns live users referencing roleID.
func (r *Repository) FindManyByRoleID(ctx context.Context, roleID string) ([]auth.User, error) {
	return r.query(ctx,
		`SELECT `+auth.UserColumns+` FROM users WHERE $1 = ANY(role_ids) AND deleted_at IS NULL ORDER BY name, id`,
		roleID)
}

// ListRoleMembers implements rbac.MemberFinder.
func (r *Repository) ListRoleMembers(ctx context.Context, roleID string) ([]rbac.Member, error) {
	users, err := r.FindManyByRoleID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	members := make([]rbac.Member, 0, len(users))
	for _, u := range users {
		members = append(members, rbac.Member{ID: u.ID, Name: u.Name, Surname: u.Surname, Email: u.Email})
	}
	return members, nil
}

// SoftDelete marks a user deleted.
func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]auth.User, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []auth.User{}
	for rows.Next() {
		u, err := auth.ScanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func buildWhere(filters Filters) (string, []any) {
	clauses := []string{"deleted_at IS NULL"}
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if v := strings.TrimSpace(filters.Name); v != "" {
		add("name ~* $%d", v)
	}
	if v := strings.TrimSpace(filters.Surname); v != "" {
		add("surname ~* $%d", v)
	}
	if v := strings.TrimSpace(filters.Email); v != "" {
		add("email ~* $%d", v)
	}
	if v := strings.TrimSpace(filters.Document); v != "" {
		add("document = $%d", v)
	}
	if !filters.IncludeSuperAdmin {
		clauses = append(clauses, "is_super_admin = false")
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func mapQueryError(err error) error {
	if db.IsInvalidRegexp(err) {
		return shared.NewValidationError("filter", "invalid regular expression")
	}
	return err
}

var (
	_ Store             = (*Repository)(nil)
	_ rbac.MemberFinder = (*Repository)(nil)
)
