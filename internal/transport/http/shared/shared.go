// Package shared holds the JSON envelope helpers used by every feature
// handler: one success encoder and one domain-error translator.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "waypost/pkg/domain-errors"
)

// WriteJSON encodes a success payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// WriteError centralizes domain error translation to HTTP responses so all
// handlers emit the same JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(dErrors.CodeInternal)
	message := "internal error"

	var derr *dErrors.Error
	if errors.As(err, &derr) {
		status = dErrors.ToHTTPStatus(derr.Code)
		code = string(derr.Code)
		message = derr.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": message,
	})
}
