package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/splax/onboard/internal/geocode"
	"github.com/splax/onboard/internal/service/registration"
)

const requestCreationMessage = "Confirmation email sent. Please check your inbox to activate your account."

func (r *Router) handleRequestCreation(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload registration.RegistrationInput
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBodyBytes)).Decode(&payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if key := emailKey(payload.Email); key != "" && !r.allow(w, ruleRequestEmail, key) {
		return
	}
	staged, err := r.registration.RequestCreation(req.Context(), payload)
	if err != nil {
		status, code, extra := requestCreationFailure(err)
		if status >= http.StatusInternalServerError {
			r.logger.Error("registration request failed", "code", code, "error", err)
		}
		r.recordOutcome("request", code)
		writeFailure(w, status, code, extra)
		return
	}
	r.recordOutcome("request", "staged")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": requestCreationMessage,
		"email":   staged.Email,
	})
}

// requestCreationFailure maps registration errors onto status, error code and extra body fields.
func requestCreationFailure(err error) (int, string, map[string]any) {
	var verr *registration.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_failed", map[string]any{"fields": verr.Fields}
	case errors.Is(err, registration.ErrEmailExists):
		return http.StatusConflict, "email_exists", nil
	case errors.Is(err, registration.ErrServiceNowConfigMissing):
		return http.StatusInternalServerError, "servicenow_config_missing", nil
	case errors.Is(err, registration.ErrServiceNowCheckFailed):
		return http.StatusInternalServerError, "servicenow_check_failed", nil
	case errors.Is(err, registration.ErrEmailConfigMissing):
		return http.StatusInternalServerError, "email_config_missing", nil
	case errors.Is(err, registration.ErrEmailSendFailed):
		return http.StatusInternalServerError, "email_send_failed", nil
	default:
		return http.StatusInternalServerError, "server_error", nil
	}
}

func (r *Router) handleConfirmCreation(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	token := req.URL.Query().Get("token")
	// provisioning must finish even if the browser goes away mid-sequence
	ctx := context.WithoutCancel(req.Context())
	result, err := r.registration.ConfirmCreation(ctx, token)
	if err != nil {
		outcome := "failed"
		switch {
		case errors.Is(err, registration.ErrTokenMissing), errors.Is(err, registration.ErrTokenInvalid):
			outcome = "invalid_token"
			r.logger.Warn("confirmation rejected", "reason", outcome)
		case errors.Is(err, registration.ErrTokenExpired):
			outcome = "expired_token"
			r.logger.Warn("confirmation rejected", "reason", outcome)
		default:
			r.logger.Error("account provisioning failed", "error", err)
		}
		r.recordOutcome("confirm", outcome)
		r.pages.renderError(w, err)
		return
	}
	r.recordOutcome("confirm", "provisioned")
	r.logger.Info("registration confirmed", "email", result.Email)
	r.pages.renderSuccess(w, result)
}

func (r *Router) handleReverseGeocode(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	query := req.URL.Query()
	lat, latErr := parseCoordinate(query.Get("lat"))
	lon, lonErr := parseCoordinate(query.Get("lng"))
	if latErr != nil || lonErr != nil {
		writeError(w, http.StatusBadRequest, "lat and lng query parameters must be numbers")
		return
	}
	if err := geocode.ValidateCoordinates(lat, lon); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	addr := r.geocoder.Reverse(req.Context(), lat, lon)
	writeJSON(w, http.StatusOK, map[string]string{
		"address":    addr.Address,
		"city":       addr.City,
		"state":      addr.State,
		"country":    addr.Country,
		"postalCode": addr.PostalCode,
	})
}

func parseCoordinate(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("missing coordinate")
	}
	return strconv.ParseFloat(raw, 64)
}
