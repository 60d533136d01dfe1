package httpx

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure sends the {success:false, error:<code>} envelope used by the registration API.
func writeFailure(w http.ResponseWriter, status int, code string, extra map[string]any) {
	payload := map[string]any{"success": false, "error": code}
	for k, v := range extra {
		payload[k] = v
	}
	writeJSON(w, status, payload)
}
