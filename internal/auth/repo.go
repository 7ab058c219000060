package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository defines persistence operations for principals.
type Repository interface {
	UserFinder
	FindByID(ctx context.Context, id string) (User, error)
	CountByEmail(ctx context.Context, email string) (int, error)
	Create(ctx context.Context, user User) (User, error)
	Update(ctx context.Context, user User) (User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db DBTX) *PGRepository {
	return &PGRepository{db: db}
}

// UserColumns is the column list understood by ScanUser.
const UserColumns = `id::text, name, surname, document, birth_date, email, password_hash, reset_code, reset_expires,
	phone, mobile, is_activated, is_super_admin, photo, role_ids, claims, created_at, updated_at`

// FindByEmail fetches a live user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+UserColumns+` FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`,
		strings.TrimSpace(email))
	return ScanUser(row)
}

// FindByID fetches a live user by id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, shared.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+UserColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
	return ScanUser(row)
}

// CountByEmail counts live users holding email.
func (r *PGRepository) CountByEmail(ctx context.Context, email string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`,
		strings.TrimSpace(email)).Scan(&n)
	return n, err
}

// LookupUserID resolves the id behind an email for the access log.
func (r *PGRepository) LookupUserID(ctx context.Context, email string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT id::text FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`,
		strings.TrimSpace(email)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	return id, err
}

// Create inserts a user, assigning a new id.
func (r *PGRepository) Create(ctx context.Context, user User) (User, error) {
	claims, err := encodeClaims(user.Claims)
	if err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (id, name, surname, document, birth_date, email, password_hash, reset_code, reset_expires,
			phone, mobile, is_activated, is_super_admin, photo, role_ids, claims, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
		 RETURNING `+UserColumns,
		user.ID, user.Name, user.Surname, nullable(user.Document), user.BirthDate, user.Email, user.PasswordHash,
		user.ResetCode, user.ResetExpires, nullable(user.Phone), nullable(user.Mobile), user.IsActivated,
		user.IsSuperAdmin, nullable(user.Photo), roleIDs(user.RoleIDs), claims, now)
	created, err := ScanUser(row)
	return created, mapWriteError(err)
}

// Update overwrites every mutable column of user.
func (r *PGRepository) Update(ctx context.Context, user User) (User, error) {
	claims, err := encodeClaims(user.Claims)
	if err != nil {
		return User{}, err
	}
	row := r.db.QueryRow(ctx,
		`UPDATE users SET name = $2, surname = $3, document = $4, birth_date = $5, email = $6, password_hash = $7,
			reset_code = $8, reset_expires = $9, phone = $10, mobile = $11, is_activated = $12, is_super_admin = $13,
			photo = $14, role_ids = $15, claims = $16, updated_at = $17
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+UserColumns,
		user.ID, user.Name, user.Surname, nullable(user.Document), user.BirthDate, user.Email, user.PasswordHash,
		user.ResetCode, user.ResetExpires, nullable(user.Phone), nullable(user.Mobile), user.IsActivated,
		user.IsSuperAdmin, nullable(user.Photo), roleIDs(user.RoleIDs), claims, time.Now().UTC())
	updated, err := ScanUser(row)
	return updated, mapWriteError(err)
}

// ScanUser reads a row selected with UserColumns.
func ScanUser(row pgx.Row) (User, error) {
	var (
		user                           User
		document, phone, mobile, photo *string
		claims                         []byte
	)
	err := row.Scan(&user.ID, &user.Name, &user.Surname, &document, &user.BirthDate, &user.Email, &user.PasswordHash,
		&user.ResetCode, &user.ResetExpires, &phone, &mobile, &user.IsActivated, &user.IsSuperAdmin, &photo,
		&user.RoleIDs, &claims, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	user.Document = deref(document)
	user.Phone = deref(phone)
	user.Mobile = deref(mobile)
	user.Photo = deref(photo)
	if user.RoleIDs == nil {
		user.RoleIDs = []string{}
	}
	if len(claims) > 0 {
		if err := json.Unmarshal(claims, &user.Claims); err != nil {
			return User{}, fmt.Errorf("auth: decode claims for user %s: %w", user.ID, err)
		}
	}
	if user.Claims == nil {
		user.Claims = []rbac.Claim{}
	}
	return user, nil
}

func encodeClaims(claims []rbac.Claim) ([]byte, error) {
	if claims == nil {
		claims = []rbac.Claim{}
	}
	return json.Marshal(claims)
}

func roleIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("auth: email already in use: %w", shared.ErrDuplicate)
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
