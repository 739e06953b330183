// Package httputil centralizes translation of resolution errors into JSON
// error envelopes so every endpoint rejects identically.
package httputil

import (
	"encoding/json"
	"net/http"

	"authgate/internal/authn"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError writes the response for a failed resolution. The body carries
// only the broad code: a probing caller cannot distinguish a revoked
// credential from a bad signature, and server faults omit the description
// entirely. The specific rejection kind is for logs and metrics only.
func WriteError(w http.ResponseWriter, err error) {
	kind := authn.KindOf(err)
	status := authn.HTTPStatus(kind)

	resp := errorResponse{}
	switch status {
	case http.StatusNotFound:
		resp.Error = "organization_not_found"
	case http.StatusInternalServerError:
		resp.Error = "resolution_unavailable"
	default:
		resp.Error = "invalid_credentials"
		resp.ErrorDescription = "Invalid credentials"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
