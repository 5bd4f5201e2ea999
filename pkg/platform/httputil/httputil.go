// Package httputil centralizes JSON response and error envelopes for the HTTP
// transport so every handler answers with the same shape.
package httputil

import (
	"encoding/json"
	"net/http"

	derrors "fccertifier/pkg/domain-errors"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into the JSON error envelope.
// Internal errors omit the description so collaborator details never reach
// clients; everything else carries a human-readable error_description.
func WriteError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != derrors.CodeInternal {
		if msg := derrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}
	WriteJSON(w, derrors.ToHTTPStatus(code), body)
}
