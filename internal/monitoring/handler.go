package monitoring

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StatusPath serves the current Snapshot.
const StatusPath = "/status"

// Routes mounts the status endpoint on r.
func (c *Collector) Routes(r chi.Router) {
	r.Get(StatusPath, c.ServeStatus)
}

// ServeStatus writes a fresh Snapshot as JSON.
func (c *Collector) ServeStatus(w http.ResponseWriter, r *http.Request) {
	snap := c.Collect(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		zap.L().Warn("monitoring: write status", zap.Error(err))
	}
}
