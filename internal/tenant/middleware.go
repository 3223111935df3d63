package tenant

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const tenantContextKey contextKey = "tenant.id"

// Resolver picks the tenant for a request from an explicit header or, failing
// that, from the subdomain of the Host. It only runs on surfaces that carry no
// credential of their own, such as the back-office login endpoint. Kiosk and
// staff routes derive the tenant from the device record or the JWT instead.
type Resolver struct {
	HeaderName    string
	RootDomain    string
	DefaultTenant string
}

// NewResolver builds a Resolver. An empty headerName falls back to "X-Tenant-ID".
func NewResolver(headerName, rootDomain, defaultTenant string) *Resolver {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}
	return &Resolver{
		HeaderName:    headerName,
		RootDomain:    strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultTenant: strings.TrimSpace(defaultTenant),
	}
}

// Middleware attaches the resolved tenant to the request context. Requests
// that resolve to nothing pass through untouched so the handler can reject
// them with a proper error.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.Resolve(req)
		if id == "" {
			id = r.DefaultTenant
		}
		if id != "" {
			req = req.WithContext(WithTenant(req.Context(), id))
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve returns the tenant identifier for the request, or "" when neither
// the header nor the subdomain names one.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if id := strings.TrimSpace(req.Header.Get(r.HeaderName)); id != "" {
		return id
	}
	return r.subdomain(stripPort(req.Host))
}

func (r *Resolver) subdomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	if r.RootDomain != "" {
		if host == r.RootDomain {
			return ""
		}
		trimmed, ok := strings.CutSuffix(host, "."+r.RootDomain)
		if !ok {
			return ""
		}
		host = trimmed
	}
	// Multi-level subdomains keep only the leftmost label.
	label, _, _ := strings.Cut(host, ".")
	return strings.TrimSpace(label)
}

func stripPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if strings.HasPrefix(hostport, "[") {
		if end := strings.Index(hostport, "]"); end > 1 {
			return hostport[1:end]
		}
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}

// WithTenant stores the tenant identifier in the context.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

// FromContext returns the tenant identifier set by WithTenant, if any.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(tenantContextKey).(string)
	if !ok {
		return "", false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	return id, true
}
