package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"caskhouse/pkg/platform/validation"
	"caskhouse/pkg/requestcontext"
)

// MaxXFFHeaderLength caps the X-Forwarded-For value we are willing to parse.
const MaxXFFHeaderLength = 500

// Config holds the proxies allowed to speak for the client.
type Config struct {
	// TrustedProxies lists CIDRs whose X-Forwarded-For / X-Real-IP headers
	// are honoured. Empty means forwarded headers are ignored.
	TrustedProxies []netip.Prefix
}

// ParseTrustedProxies turns a comma separated CIDR list into prefixes,
// skipping blanks.
func ParseTrustedProxies(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type Middleware struct {
	config Config
	now    func() time.Time
}

func NewMiddleware(cfg Config) *Middleware {
	return &Middleware{config: cfg, now: time.Now}
}

// Handler stores the client IP, a bounded User-Agent and the request time on
// the context.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent := r.Header.Get("User-Agent")
		if len(userAgent) > validation.MaxUserAgentLength {
			userAgent = userAgent[:validation.MaxUserAgentLength]
		}

		ctx := requestcontext.WithClientMetadata(r.Context(), m.clientIP(r), userAgent)
		ctx = requestcontext.WithTime(ctx, m.now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) clientIP(r *http.Request) string {
	remote := remoteIP(r.RemoteAddr)
	if !remote.IsValid() {
		return "unknown"
	}
	if !m.trusted(remote) {
		return remote.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if len(xff) > MaxXFFHeaderLength {
			return remote.String()
		}
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.Unmap().String()
		}
		return remote.String()
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}
	return remote.String()
}

func (m *Middleware) trusted(addr netip.Addr) bool {
	for _, prefix := range m.config.TrustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteIP(remoteAddr string) netip.Addr {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}
