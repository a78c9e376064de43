package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"rentcrm/internal/domain"

	"github.com/rs/zerolog"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusFor maps an error class to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExternal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError renders err without leaking details for unauthorized
// and internal failures.
func writeDomainError(w http.ResponseWriter, logger *zerolog.Logger, err error) {
	code := statusFor(err)
	switch code {
	case http.StatusUnauthorized:
		writeError(w, code, "unauthorized")
	case http.StatusInternalServerError:
		logger.Error().Err(err).Msg("request failed")
		writeError(w, code, "internal error")
	case http.StatusBadGateway:
		logger.Warn().Err(err).Msg("collaborator failed")
		writeError(w, code, "upstream failure")
	default:
		writeError(w, code, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
