package auth

import (
	"time"

	"github.com/backoffice/backoffice/internal/rbac"
)

// User represents a principal account.
type User struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Surname      string       `json:"surname"`
	Document     string       `json:"document,omitempty"`
	BirthDate    *time.Time   `json:"birthDate,omitempty"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	ResetCode    *string      `json:"-"`
	ResetExpires *time.Time   `json:"-"`
	Phone        string       `json:"phone,omitempty"`
	Mobile       string       `json:"mobile,omitempty"`
	IsActivated  bool         `json:"isActivated"`
	IsSuperAdmin bool         `json:"isSuperAdmin"`
	Photo        string       `json:"photo,omitempty"`
	RoleIDs      []string     `json:"roleIds"`
	Claims       []rbac.Claim `json:"claims"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// PublicUser is the identity-display projection embedded in session tokens.
// Fields are copied explicitly so new sensitive columns never leak.
type PublicUser struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Surname   string     `json:"surname"`
	Document  string     `json:"document,omitempty"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Mobile    string     `json:"mobile,omitempty"`
	Photo     string     `json:"photo,omitempty"`
}

// Public builds the token projection of u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Surname:   u.Surname,
		Document:  u.Document,
		BirthDate: u.BirthDate,
		Email:     u.Email,
		Phone:     u.Phone,
		Mobile:    u.Mobile,
		Photo:     u.Photo,
	}
}

// Grantee returns the fields the permission resolver needs.
func (u User) Grantee() rbac.Grantee {
	return rbac.Grantee{IsSuperAdmin: u.IsSuperAdmin, RoleIDs: u.RoleIDs, Claims: u.Claims}
}
