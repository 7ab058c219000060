package users

import (
	"time"

	"github.com/backoffice/backoffice/internal/auth"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// UserDetail is a user with its resolved roles. Dangling role ids are omitted.
type UserDetail struct {
	auth.User
	Roles []rbac.Role `json:"roles"`
}

// Filters narrows the user listing. Name, Surname and Email are
// case-insensitive regular expressions; Document matches digits exactly.
type Filters struct {
	Name              string
	Surname           string
	Email             string
	Document          string
	IncludeSuperAdmin bool
}

// ListRequest selects a page of users.
type ListRequest struct {
	Filters
	Page     int
	PerPage  int
	SortBy   string
	SortDesc bool
}

// UserPage is one page of users.
type UserPage struct {
	Pagination shared.Pagination `json:"pagination"`
	Users      []UserDetail      `json:"users"`
}

// UserInput creates or updates a user from the administration screens.
// Password is required on create and optional on update.
type UserInput struct {
	Name         string       `json:"name" validate:"required"`
	Surname      string       `json:"surname" validate:"required"`
	Document     string       `json:"document"`
	BirthDate    *time.Time   `json:"birthDate"`
	Email        string       `json:"email" validate:"required,email"`
	Password     string       `json:"password"`
	Phone        string       `json:"phone"`
	Mobile       string       `json:"mobile"`
	IsActivated  bool         `json:"isActivated"`
	IsSuperAdmin bool         `json:"isSuperAdmin"`
	Roles        []string     `json:"roles"`
	Claims       []rbac.Claim `json:"claims"`
}
