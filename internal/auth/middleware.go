package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/backoffice/backoffice/internal/shared"
)

// maxBodySnapshot bounds the request body copy kept for the access log.
const maxBodySnapshot = 64 << 10

// Middleware installs a RequestContext on every request.
type Middleware struct {
	Codec     *TokenCodec
	Recorder  AuditRecorder
	Users     UserFinder
	Decisions DecisionObserver
	Logger    *slog.Logger
}

// Authenticate decodes the bearer token when present. Missing or invalid
// tokens leave the request anonymous; handlers decide whether that is fatal.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := captureClientInfo(r)
		token := bearerToken(r.Header.Get("Authorization"))

		var payload *TokenPayload
		if token != "" && m.Codec != nil {
			verified, err := m.Codec.Verify(token)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Debug("bearer token rejected", slog.String("ip", client.IPAddress), slog.Any("error", err))
				}
			} else {
				payload = verified
			}
		}

		rc := NewRequestContext(token, payload, client, RequestContextOptions{
			Recorder:  m.Recorder,
			Users:     m.Users,
			Decisions: m.Decisions,
			Logger:    m.Logger,
		})
		ctx := shared.ContextWithClientInfo(r.Context(), client)
		ctx = ContextWith(ctx, rc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func captureClientInfo(r *http.Request) shared.ClientInfo {
	return shared.ClientInfo{
		IPAddress:   shared.SanitizeIP(r.RemoteAddr),
		UserAgent:   r.UserAgent(),
		Origin:      r.Header.Get("Origin"),
		Referrer:    r.Referer(),
		RequestBody: snapshotBody(r),
	}
}

// snapshotBody copies up to maxBodySnapshot bytes of the body and restores it
// for the downstream handler. Password fields of JSON objects are masked.
func snapshotBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxBodySnapshot))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	if err != nil || len(buf) == 0 {
		return ""
	}
	return redactSecrets(buf)
}

func redactSecrets(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return string(body)
	}
	changed := false
	for key := range fields {
		if strings.Contains(strings.ToLower(key), "password") {
			fields[key] = "***"
			changed = true
		}
	}
	if !changed {
		return string(body)
	}
	masked, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(masked)
}

type readCloser struct {
	io.Reader
	io.Closer
}
