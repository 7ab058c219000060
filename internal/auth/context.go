package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/backoffice/backoffice/internal/audit"
	"github.com/backoffice/backoffice/internal/observability"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// AuditRecorder accepts access log entries without blocking.
type AuditRecorder interface {
	Record(entry audit.AccessLogEntry)
}

// DecisionObserver is notified of every permission check outcome.
type DecisionObserver interface {
	AuthzDecision(result string)
}

// UserFinder loads the principal behind a token.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (User, error)
}

// RequestContext is the per-request authorization state. It is built once
// from the bearer token and discarded when the request ends.
type RequestContext struct {
	token     string
	payload   *TokenPayload
	client    shared.ClientInfo
	recorder  AuditRecorder
	users     UserFinder
	decisions DecisionObserver
	logger    *slog.Logger
}

// RequestContextOptions carries the collaborators of a RequestContext.
type RequestContextOptions struct {
	Recorder  AuditRecorder
	Users     UserFinder
	Decisions DecisionObserver
	Logger    *slog.Logger
}

// NewRequestContext builds the context for one request. payload is nil for
// anonymous callers; token is the raw bearer value, possibly invalid.
func NewRequestContext(token string, payload *TokenPayload, client shared.ClientInfo, opts RequestContextOptions) *RequestContext {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RequestContext{
		token:     token,
		payload:   payload,
		client:    client,
		recorder:  opts.Recorder,
		users:     opts.Users,
		decisions: opts.Decisions,
		logger:    opts.Logger,
	}
}

// IsAuthenticated fails with shared.ErrUnauthenticated for anonymous callers.
func (c *RequestContext) IsAuthenticated() error {
	if c == nil || c.payload == nil {
		return shared.ErrUnauthenticated
	}
	return nil
}

// CheckPermission reports whether the caller holds permission. It never
// writes an audit entry and never fails.
func (c *RequestContext) CheckPermission(permission string) bool {
	if c.IsAuthenticated() != nil {
		return false
	}
	if c.payload.IsSuperAdmin || c.payload.IsAdmin {
		return true
	}
	return slices.Contains(c.payload.Claims, permission)
}

// HasPermission gates an operation on a single claim. When record is true an
// access log entry is recorded before anything is evaluated.
func (c *RequestContext) HasPermission(ctx context.Context, permission string, record bool) error {
	if record {
		c.audit()
	}
	err := c.evaluate(permission)
	c.observe(err)
	return err
}

// HasPermissions reports whether the caller holds every permission. One
// audit entry is recorded for the whole check. An empty list is denied.
func (c *RequestContext) HasPermissions(ctx context.Context, permissions []string, record bool) bool {
	if record {
		c.audit()
	}
	if c.IsAuthenticated() != nil {
		c.observe(shared.ErrUnauthenticated)
		return false
	}
	if len(permissions) == 0 {
		c.missingPermissions()
		return false
	}
	allowed := true
	for _, p := range permissions {
		if err := c.evaluate(p); err != nil {
			allowed = false
		}
	}
	c.observeBool(allowed)
	return allowed
}

// HasAnyPermissions reports whether the caller holds at least one permission.
func (c *RequestContext) HasAnyPermissions(ctx context.Context, permissions []string, record bool) bool {
	if record {
		c.audit()
	}
	if c.IsAuthenticated() != nil {
		c.observe(shared.ErrUnauthenticated)
		return false
	}
	if len(permissions) == 0 {
		c.missingPermissions()
		return false
	}
	for _, p := range permissions {
		if c.evaluate(p) == nil {
			c.observeBool(true)
			return true
		}
	}
	c.observeBool(false)
	return false
}

// missingPermissions records a bulk check called without any permission.
func (c *RequestContext) missingPermissions() {
	c.logger.Warn("bulk permission check without permissions", slog.String("user_id", c.CurrentUserID()))
	c.observe(shared.NewValidationError("permission", "permission is required"))
}

// GetUser loads the current principal fresh from storage.
func (c *RequestContext) GetUser(ctx context.Context) (User, error) {
	if err := c.IsAuthenticated(); err != nil {
		return User{}, err
	}
	if c.users == nil {
		return User{}, errors.New("auth: user finder not configured")
	}
	user, err := c.users.FindByEmail(ctx, c.payload.User.Email)
	if errors.Is(err, shared.ErrNotFound) {
		return User{}, fmt.Errorf("%w: principal no longer exists", shared.ErrUnauthenticated)
	}
	return user, err
}

// CurrentUserID returns the principal id, empty for anonymous callers.
func (c *RequestContext) CurrentUserID() string {
	if c.IsAuthenticated() != nil {
		return ""
	}
	return c.payload.UID
}

// IsAdmin reports whether the caller holds the admin role or is a super-admin.
func (c *RequestContext) IsAdmin() bool {
	return c.IsAuthenticated() == nil && (c.payload.IsAdmin || c.payload.IsSuperAdmin)
}

// IsSuperAdmin reports whether the caller is a super-admin.
func (c *RequestContext) IsSuperAdmin() bool {
	return c.IsAuthenticated() == nil && c.payload.IsSuperAdmin
}

// Claims returns a copy of the token's claim list.
func (c *RequestContext) Claims() []string {
	if c.IsAuthenticated() != nil {
		return []string{}
	}
	return slices.Clone(c.payload.Claims)
}

// Payload returns the verified token payload, nil for anonymous callers.
func (c *RequestContext) Payload() *TokenPayload {
	if c == nil {
		return nil
	}
	return c.payload
}

// Token returns the raw bearer value.
func (c *RequestContext) Token() string {
	if c == nil {
		return ""
	}
	return c.token
}

func (c *RequestContext) evaluate(permission string) error {
	if strings.TrimSpace(permission) == "" {
		return shared.NewValidationError("permission", "permission is required")
	}
	if err := c.IsAuthenticated(); err != nil {
		return err
	}
	if !c.CheckPermission(permission) {
		return &shared.ForbiddenError{Permission: permission}
	}
	return nil
}

func (c *RequestContext) audit() {
	if c == nil || c.recorder == nil {
		return
	}
	entry := audit.AccessLogEntry{
		IPAddress:   c.client.IPAddress,
		UserAgent:   c.client.UserAgent,
		Origin:      c.client.Origin,
		Referrer:    c.client.Referrer,
		RequestBody: c.client.RequestBody,
	}
	if c.token != "" {
		token := c.token
		entry.Token = &token
	}
	if c.payload != nil {
		entry.Email = c.payload.User.Email
	}
	c.recorder.Record(entry)
}

func (c *RequestContext) observe(err error) {
	if c == nil || c.decisions == nil {
		return
	}
	switch {
	case err == nil:
		c.decisions.AuthzDecision(observability.DecisionAllowed)
	case errors.Is(err, shared.ErrValidation):
		c.decisions.AuthzDecision(observability.DecisionInvalid)
	case errors.Is(err, shared.ErrUnauthenticated):
		c.decisions.AuthzDecision(observability.DecisionUnauthenticated)
	default:
		c.decisions.AuthzDecision(observability.DecisionForbidden)
	}
}

func (c *RequestContext) observeBool(allowed bool) {
	if allowed {
		c.observe(nil)
		return
	}
	c.observe(shared.ErrForbidden)
}

type contextKey struct{}

// ContextWith stores rc in ctx.
func ContextWith(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the request's auth context, nil when none was installed.
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rc
}

// Checker adapts the request's auth context for rbac.Middleware.
func Checker(r *http.Request) rbac.Checker {
	if rc := FromContext(r.Context()); rc != nil {
		return rc
	}
	return nil
}

var _ rbac.Checker = (*RequestContext)(nil)
