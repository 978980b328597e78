// Package shared holds the JSON plumbing every handler uses: response
// writing, error translation, pagination envelopes and URL building.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "classhub/pkg/domain-errors"
)

// WriteJSON writes v with the given status. Encoding failures are swallowed;
// the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error to its HTTP status and a JSON error
// envelope. Unrecognized errors become 500 without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	status := dErrors.ToHTTPStatus(dErrors.CodeOf(err))
	message := dErrors.MessageOf(err)
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	WriteJSON(w, status, map[string]string{"error": message})
}

// Decode parses the request body into v, returning a bad-request domain error
// on malformed JSON.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
