package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/orderhub-dev/backend-kiosk/internal/common"
	"github.com/orderhub-dev/backend-kiosk/internal/tenant"
)

// StreamHandler serves the kitchen display event stream over SSE.
type StreamHandler struct {
	Subscriber *Subscriber
	Heartbeat  time.Duration
	Log        zerolog.Logger
}

func (h *StreamHandler) heartbeat() time.Duration {
	if h.Heartbeat <= 0 {
		return 25 * time.Second
	}
	return h.Heartbeat
}

// ServeHTTP handles GET /api/v1/kds/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "streaming unsupported", nil)
		return
	}

	orders, err := h.Subscriber.Orders(r.Context(), tenantID)
	if err != nil {
		h.Log.Error().Err(err).Str("tenant_id", tenantID).Msg("kds subscribe failed")
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "event stream unavailable", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat())
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case o, ok := <-orders:
			if !ok {
				return
			}
			payload, err := json.Marshal(o)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: order\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
