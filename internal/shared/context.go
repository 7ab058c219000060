package shared

import (
	"context"
	"net"
	"strings"
)

// ClientInfo captures request attributes recorded by the access log.
type ClientInfo struct {
	IPAddress   string
	UserAgent   string
	Origin      string
	Referrer    string
	RequestBody string
}

type clientInfoContextKey struct{}

// ContextWithClientInfo stores the client info in context.
func ContextWithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoContextKey{}, info)
}

// ClientInfoFromContext extracts the client info from context.
func ClientInfoFromContext(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoContextKey{}).(ClientInfo)
	return info
}

// SanitizeIP strips a trailing port and the IPv4-mapped IPv6 prefix.
func SanitizeIP(raw string) string {
	ip := strings.TrimSpace(raw)
	if first, _, ok := strings.Cut(ip, ","); ok {
		ip = strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	} else if strings.Count(ip, ":") == 1 {
		ip, _, _ = strings.Cut(ip, ":")
	}
	ip = strings.TrimPrefix(ip, "[")
	ip = strings.TrimSuffix(ip, "]")
	return strings.TrimPrefix(ip, "::ffff:")
}
