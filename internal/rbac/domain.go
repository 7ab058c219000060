package rbac

import (
	"strings"
	"time"
)

// Reserved role names. They cannot be deleted or renamed.
const (
	RoleAdmin  = "admin"
	RoleCommon = "common"
)

// Claim is a single "type:value" capability held by a role or a user.
type Claim struct {
	ClaimType  string `json:"claimType"`
	ClaimValue string `json:"claimValue"`
}

// String renders the claim the way the catalog stores it.
func (c Claim) String() string {
	return c.ClaimType + ":" + c.ClaimValue
}

// ParseClaim splits "Module:Action". ok is false when either half is blank.
func ParseClaim(raw string) (Claim, bool) {
	t, v, found := strings.Cut(strings.TrimSpace(raw), ":")
	if !found || strings.TrimSpace(t) == "" || strings.TrimSpace(v) == "" {
		return Claim{}, false
	}
	return Claim{ClaimType: strings.TrimSpace(t), ClaimValue: strings.TrimSpace(v)}, true
}

// Role represents a named bundle of claims.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Claims      []Claim   `json:"claims"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsReserved reports whether the role is system-defined.
func (r Role) IsReserved() bool {
	return IsReservedName(r.Name)
}

// IsReservedName reports whether name belongs to a system-defined role.
func IsReservedName(name string) bool {
	return name == RoleAdmin || name == RoleCommon
}

// Grantee is the subset of a principal the resolver needs.
type Grantee struct {
	IsSuperAdmin bool
	RoleIDs      []string
	Claims       []Claim
}

// Resolution is the effective permission set computed at authentication time.
type Resolution struct {
	Claims       []string
	RoleNames    []string
	IsAdmin      bool
	IsSuperAdmin bool
}
