// Package health serves liveness and readiness checks.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/toko-storefront/internal/common"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips readiness; the server clears it when draining for shutdown.
func SetReady(v bool) { ready.Store(v) }

// Pinger is a dependency that can be pinged, such as a storage.KV.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks  map[string]Pinger
	Timeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready pings every dependency and reports 503 when any fails or the
// server is shutting down.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(h.Checks)+1)
	healthy := ready.Load()
	if !healthy {
		status["server"] = "shutting down"
	}
	for name, dep := range h.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
		err := dep.Ping(ctx)
		cancel()
		if err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.Timeout
}
