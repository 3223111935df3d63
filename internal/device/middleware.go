package device

import (
	"errors"
	"net/http"
	"strings"

	"github.com/orderhub-dev/backend-kiosk/internal/common"
	"github.com/orderhub-dev/backend-kiosk/internal/tenant"
)

// Middleware authenticates kiosk devices from request headers. A valid device
// binds the request to its tenant, overriding any client-supplied tenant.
type Middleware struct {
	Service *Service
}

// Require rejects requests without valid device credentials.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := strings.TrimSpace(r.Header.Get("X-Device-ID"))
		secret := strings.TrimSpace(r.Header.Get("X-Device-Secret"))
		if deviceID == "" || secret == "" {
			common.JSONError(w, http.StatusUnauthorized, "DEVICE_UNAUTHORIZED", "missing device credentials", nil)
			return
		}
		d, err := m.Service.Authenticate(r.Context(), deviceID, secret)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadSecret) {
				common.JSONError(w, http.StatusUnauthorized, "DEVICE_UNAUTHORIZED", "invalid device credentials", nil)
				return
			}
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
			return
		}
		ctx := tenant.WithTenant(r.Context(), d.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
