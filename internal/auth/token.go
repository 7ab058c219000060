package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// TokenVersion is the payload schema version. Tokens carrying another
// version are rejected.
const TokenVersion = 1

// TokenPayload is the signed session token body.
type TokenPayload struct {
	Version      int        `json:"ver"`
	User         PublicUser `json:"user"`
	IsSuperAdmin bool       `json:"isSuperAdmin"`
	IsAdmin      bool       `json:"isAdmin"`
	Claims       []string   `json:"claims"`
	Roles        []string   `json:"roles"`
	UID          string     `json:"uid"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	Secret       []byte
	RememberDays int
	Location     *time.Location
	Now          func() time.Time
}

// TokenCodec issues and verifies HS256 session tokens.
type TokenCodec struct {
	secret       []byte
	rememberDays int
	loc          *time.Location
	now          func() time.Time
}

// NewTokenCodec constructs a codec. The secret must not be empty.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: token secret must be provided")
	}
	if cfg.RememberDays <= 0 {
		cfg.RememberDays = 7
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenCodec{secret: cfg.Secret, rememberDays: cfg.RememberDays, loc: cfg.Location, now: cfg.Now}, nil
}

// Issue signs a token for user carrying the resolved permission set.
// Without remember the token expires at 23:59:59 of the current day in the
// configured location; with remember it lasts the configured number of days.
func (c *TokenCodec) Issue(user User, res rbac.Resolution, remember bool) (string, time.Time, error) {
	issuedAt := time.Unix(c.now().Unix(), 0).In(c.loc)
	expiresAt := c.expiry(issuedAt, remember)

	claims := res.Claims
	if claims == nil {
		claims = []string{}
	}
	roles := res.RoleNames
	if roles == nil {
		roles = []string{}
	}
	payload := TokenPayload{
		Version:      TokenVersion,
		User:         user.Public(),
		IsSuperAdmin: res.IsSuperAdmin || user.IsSuperAdmin,
		IsAdmin:      res.IsAdmin || user.IsSuperAdmin,
		Claims:       claims,
		Roles:        roles,
		UID:          user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, expiry and schema version.
func (c *TokenCodec) Verify(raw string) (*TokenPayload, error) {
	payload := &TokenPayload{}
	_, err := jwt.ParseWithClaims(raw, payload, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidOrExpiredToken, err)
	}
	if payload.Version != TokenVersion {
		return nil, fmt.Errorf("%w: unsupported token version %d", shared.ErrInvalidOrExpiredToken, payload.Version)
	}
	return payload, nil
}

func (c *TokenCodec) expiry(issuedAt time.Time, remember bool) time.Time {
	if remember {
		return issuedAt.Add(time.Duration(c.rememberDays) * 24 * time.Hour)
	}
	y, m, d := issuedAt.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, c.loc)
}
