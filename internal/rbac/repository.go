package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/shared"
)

// ListParams controls ordering and windowing of role listings.
type ListParams struct {
	Offset   int
	Limit    int
	SortBy   string
	SortDesc bool
}

// Store defines persistence operations for roles.
type Store interface {
	RoleFinder
	FindRoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context, params ListParams) ([]Role, error)
	CountRoles(ctx context.Context) (int, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id string) error
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
	"name":        "name",
	"description": "description",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

const roleColumns = `id::text, name, description, claims, created_at, updated_at`

// FindRoleByID fetches a role by id.
func (r *PGRepository) FindRoleByID(ctx context.Context, id string) (Role, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Role{}, shared.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

// FindRoleByName fetches a role by its slug name.
func (r *PGRepository) FindRoleByName(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	return scanRole(row)
}

// ListRoles returns a window of roles.
func (r *PGRepository) ListRoles(ctx context.Context, params ListParams) ([]Role, error) {
	column, ok := sortColumns[params.SortBy]
	if !ok {
		column = "name"
	}
	dir := "ASC"
	if params.SortDesc {
		dir = "DESC"
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM roles ORDER BY %s %s, id LIMIT $1 OFFSET $2`, roleColumns, column, dir),
		limit, params.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CountRoles returns the number of stored roles.
func (r *PGRepository) CountRoles(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles`).Scan(&n)
	return n, err
}

// CreateRole inserts a role, assigning a new id.
func (r *PGRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	claims, err := encodeClaims(role.Claims)
	if err != nil {
		return Role{}, err
	}
	now := time.Now().UTC()
	role.ID = uuid.NewString()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (id, name, description, claims, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5) RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, claims, now)
	created, err := scanRole(row)
	return created, mapWriteError(err)
}

// UpdateRole overwrites name, description and claims.
func (r *PGRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	claims, err := encodeClaims(role.Claims)
	if err != nil {
		return Role{}, err
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, claims = $4, updated_at = $5
		 WHERE id = $1 RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, claims, time.Now().UTC())
	updated, err := scanRole(row)
	return updated, mapWriteError(err)
}

// DeleteRole removes a role. User references to it are left dangling.
func (r *PGRepository) DeleteRole(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanRole(row pgx.Row) (Role, error) {
	var (
		role   Role
		claims []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &claims, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	if len(claims) > 0 {
		if err := json.Unmarshal(claims, &role.Claims); err != nil {
			return Role{}, fmt.Errorf("rbac: decode claims for role %s: %w", role.ID, err)
		}
	}
	if role.Claims == nil {
		role.Claims = []Claim{}
	}
	return role, nil
}

func encodeClaims(claims []Claim) ([]byte, error) {
	if claims == nil {
		claims = []Claim{}
	}
	return json.Marshal(claims)
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err) {
		return shared.ErrDuplicate
	}
	return err
}

var _ Store = (*PGRepository)(nil)
