package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindCommand:
		return http.StatusBadGateway
	case apperr.KindConfigWrite, apperr.KindReload:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// writeError renders err with a status derived from its kind. Errors
// without a kind are logged and reported as internal.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		logger.Error().Err(err).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	status := statusFor(ae.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("kind", string(ae.Kind)).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: string(ae.Kind)})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("decode request", "invalid request body: %v", err)
	}
	return nil
}
