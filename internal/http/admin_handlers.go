package httpx

import (
	"net/http"
	"time"
)

func (r *Router) handlePendingStats(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	count, err := r.registration.PendingCount(req.Context())
	if err != nil {
		r.logger.Error("pending count failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count pending registrations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending":   count,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (r *Router) handlePendingSweep(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	removed, err := r.registration.Sweep(req.Context())
	if err != nil {
		r.logger.Error("pending sweep failed", "error", err, "removed", removed)
		writeError(w, http.StatusInternalServerError, "failed to sweep pending registrations")
		return
	}
	if info, ok := authInfoFromContext(req.Context()); ok {
		r.logger.Info("pending registrations swept", "subject", info.Subject, "removed", removed)
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
