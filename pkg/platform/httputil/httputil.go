// Package httputil centralizes JSON response envelopes so handlers stay thin
// and error translation is consistent across modules.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "amanah/pkg/domain-errors"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps a domain error to its HTTP status and a JSON error
// envelope. Unclassified errors surface as 500 with a generic message so
// internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal error"
	if code != dErrors.CodeInternal {
		message = err.Error()
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": message,
	})
}
