package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/backoffice/internal/audit"
	"github.com/backoffice/backoffice/internal/observability"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

func authenticated(payload TokenPayload, recorder AuditRecorder) *RequestContext {
	return NewRequestContext("raw-token", &payload, shared.ClientInfo{IPAddress: "10.0.0.1", UserAgent: "test"}, RequestContextOptions{Recorder: recorder})
}

func TestSuperAdminPassesEveryCheck(t *testing.T) {
	rc := authenticated(TokenPayload{IsSuperAdmin: true, IsAdmin: true, Claims: []string{}}, nil)
	for _, p := range []string{shared.PermUserCreate, "Unknown:Thing", "anything"} {
		assert.True(t, rc.CheckPermission(p), p)
		assert.NoError(t, rc.HasPermission(context.Background(), p, false), p)
	}
	assert.True(t, rc.IsSuperAdmin())
	assert.True(t, rc.IsAdmin())
}

func TestAnonymousContext(t *testing.T) {
	recorder := &captureRecorder{}
	rc := NewRequestContext("", nil, shared.ClientInfo{IPAddress: "10.0.0.9"}, RequestContextOptions{Recorder: recorder})

	require.ErrorIs(t, rc.IsAuthenticated(), shared.ErrUnauthenticated)
	assert.False(t, rc.CheckPermission(shared.PermUserCreate))
	require.ErrorIs(t, rc.HasPermission(context.Background(), shared.PermUserCreate, true), shared.ErrUnauthenticated)
	assert.False(t, rc.HasPermissions(context.Background(), []string{shared.PermUsers}, true))
	assert.False(t, rc.HasAnyPermissions(context.Background(), []string{shared.PermUsers}, true))
	assert.Empty(t, rc.CurrentUserID())
	assert.Empty(t, rc.Claims())

	_, err := rc.GetUser(context.Background())
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	require.Equal(t, 3, recorder.count())
	assert.Nil(t, recorder.entries[0].Token)
	assert.Equal(t, "10.0.0.9", recorder.entries[0].IPAddress)
}

func TestNilContextIsAnonymous(t *testing.T) {
	var rc *RequestContext
	require.ErrorIs(t, rc.IsAuthenticated(), shared.ErrUnauthenticated)
	assert.False(t, rc.CheckPermission(shared.PermUsers))
	assert.Empty(t, rc.Token())
}

func TestDirectClaimGrantsOnlyThatClaim(t *testing.T) {
	rc := authenticated(TokenPayload{UID: "u1", Claims: []string{"Products:Delete"}}, nil)

	require.NoError(t, rc.HasPermission(context.Background(), "Products:Delete", false))

	err := rc.HasPermission(context.Background(), "Products:Create", false)
	require.ErrorIs(t, err, shared.ErrForbidden)
	var forbidden *shared.ForbiddenError
	require.True(t, errors.As(err, &forbidden))
	assert.Equal(t, "Products:Create", forbidden.Permission)
	assert.Contains(t, err.Error(), "Products:Create")
}

func TestAdminFlagPassesChecks(t *testing.T) {
	rc := authenticated(TokenPayload{IsAdmin: true, Claims: []string{}}, nil)
	assert.True(t, rc.CheckPermission(shared.PermRoleDelete))
	assert.False(t, rc.IsSuperAdmin())
}

func TestBlankPermissionIsValidationError(t *testing.T) {
	anon := NewRequestContext("", nil, shared.ClientInfo{}, RequestContextOptions{})
	super := authenticated(TokenPayload{IsSuperAdmin: true}, nil)
	for _, rc := range []*RequestContext{anon, super} {
		for _, p := range []string{"", "   "} {
			err := rc.HasPermission(context.Background(), p, false)
			require.ErrorIs(t, err, shared.ErrValidation)
		}
	}
}

func TestBulkChecksAuditOnce(t *testing.T) {
	recorder := &captureRecorder{}
	decisions := countingDecisions{}
	rc := NewRequestContext("raw-token", &TokenPayload{
		UID:    "u1",
		User:   PublicUser{Email: "ana@example.com"},
		Claims: []string{shared.PermUsers, shared.PermUser},
	}, shared.ClientInfo{IPAddress: "10.0.0.1"}, RequestContextOptions{Recorder: recorder, Decisions: decisions})

	assert.True(t, rc.HasPermissions(context.Background(), []string{shared.PermUsers, shared.PermUser}, true))
	assert.False(t, rc.HasPermissions(context.Background(), []string{shared.PermUsers, shared.PermUserDelete}, true))
	assert.True(t, rc.HasAnyPermissions(context.Background(), []string{shared.PermUserDelete, shared.PermUser}, true))
	assert.False(t, rc.HasAnyPermissions(context.Background(), []string{shared.PermUserDelete}, false))

	require.Equal(t, 3, recorder.count())
	entry := recorder.entries[0]
	require.NotNil(t, entry.Token)
	assert.Equal(t, "raw-token", *entry.Token)
	assert.Equal(t, "ana@example.com", entry.Email)
	assert.Equal(t, 2, decisions[observability.DecisionAllowed])
	assert.Equal(t, 2, decisions[observability.DecisionForbidden])
}

func TestBulkChecksDenyEmptyLists(t *testing.T) {
	decisions := countingDecisions{}
	for _, payload := range []TokenPayload{{UID: "u1"}, {UID: "root", IsSuperAdmin: true}} {
		rc := NewRequestContext("raw-token", &payload, shared.ClientInfo{}, RequestContextOptions{Decisions: decisions})
		assert.False(t, rc.HasPermissions(context.Background(), nil, false))
		assert.False(t, rc.HasPermissions(context.Background(), []string{}, false))
		assert.False(t, rc.HasAnyPermissions(context.Background(), nil, false))
	}
	assert.Equal(t, 6, decisions[observability.DecisionInvalid])
	assert.Zero(t, decisions[observability.DecisionAllowed])
}

type failingSink struct {
	calls atomic.Int32
}

func (f *failingSink) InsertAccessLog(ctx context.Context, entry audit.AccessLogEntry) error {
	f.calls.Add(1)
	return errors.New("connection refused")
}

func TestAuditOutageDoesNotAffectDecisions(t *testing.T) {
	sink := &failingSink{}
	recorder := audit.NewRecorder(sink, nil, audit.RecorderOptions{QueueSize: 4})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = recorder.Run(ctx)
		close(done)
	}()

	rc := authenticated(TokenPayload{UID: "u1", Claims: []string{"Products:Delete"}}, recorder)
	require.NoError(t, rc.HasPermission(context.Background(), "Products:Delete", true))
	require.ErrorIs(t, rc.HasPermission(context.Background(), "Products:Create", true), shared.ErrForbidden)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}
	assert.Equal(t, int32(2), sink.calls.Load())
}

func TestGetUserReadsFreshRecord(t *testing.T) {
	user := sampleUser()
	users := newStubUsers(user)
	rc := NewRequestContext("t", &TokenPayload{UID: user.ID, User: user.Public()}, shared.ClientInfo{}, RequestContextOptions{Users: users})

	got, err := rc.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	delete(users.users, user.ID)
	_, err = rc.GetUser(context.Background())
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestMiddlewareBuildsContextFromBearer(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, now)
	token, _, err := codec.Issue(sampleUser(), rbac.Resolution{Claims: []string{"Users:Users"}}, true)
	require.NoError(t, err)

	var seen *RequestContext
	var body string
	handler := Middleware{Codec: codec}.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		body = buf.String()
	}))

	req := httptest.NewRequest(http.MethodPost, "/roles", strings.NewReader(`{"name":"x","password":"secret"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.RemoteAddr = "[::ffff:192.168.0.7]:5050"
	req.Header.Set("X-Forwarded-For", "203.0.113.66")
	req.Header.Set("Origin", "https://admin.example.com")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	require.NoError(t, seen.IsAuthenticated())
	assert.Equal(t, sampleUser().ID, seen.CurrentUserID())
	assert.Equal(t, token, seen.Token())
	assert.Equal(t, `{"name":"x","password":"secret"}`, body)
	assert.Equal(t, "192.168.0.7", seen.client.IPAddress)
	assert.Equal(t, "https://admin.example.com", seen.client.Origin)
	assert.NotContains(t, seen.client.RequestBody, "secret")
	assert.Contains(t, seen.client.RequestBody, `"name":"x"`)
}

func TestMiddlewareInvalidTokenIsAnonymous(t *testing.T) {
	codec := newTestCodec(t, time.Now())
	var seen *RequestContext
	handler := Middleware{Codec: codec}.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	require.ErrorIs(t, seen.IsAuthenticated(), shared.ErrUnauthenticated)
	assert.Equal(t, "not-a-token", seen.Token())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer   abc "))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken(""))
	assert.Empty(t, bearerToken("Bearer"))
}
