// Package shared holds the response helpers every handler uses.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "registrar/pkg/domain-errors"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError maps a coded domain error onto its HTTP status. Unknown
// errors become opaque 500s.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := err.Error()
	if code == dErrors.CodeInternal {
		message = "internal server error"
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), errorBody{
		Error:   string(code),
		Message: message,
	})
}
