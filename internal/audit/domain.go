package audit

import (
	"time"

	"github.com/backoffice/backoffice/internal/shared"
)

// AccessLogEntry is one authorization-sensitive request. Entries are never
// updated once written.
type AccessLogEntry struct {
	ID          string    `json:"id"`
	Token       *string   `json:"token"`
	IPAddress   string    `json:"ipAddress"`
	UserAgent   string    `json:"userAgent"`
	Origin      string    `json:"origin"`
	Referrer    string    `json:"referrer"`
	RequestBody string    `json:"requestBody"`
	UserID      *string   `json:"userId"`
	User        *LogUser  `json:"user,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`

	// Email identifies the caller for principal resolution. It is not stored.
	Email string `json:"-"`
}

// LogUser is the display projection of the principal attached to an entry.
type LogUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

// ListFilters narrows the access log listing. IP and Body are
// case-insensitive regular expressions.
type ListFilters struct {
	IP       string
	UserID   string
	Body     string
	Page     int
	PerPage  int
	SortBy   string
	SortDesc bool
}

// LogPage is one page of access log entries.
type LogPage struct {
	Pagination shared.Pagination `json:"pagination"`
	Logs       []AccessLogEntry  `json:"logs"`
}
