// Package httputil centralizes the JSON envelopes handlers write, so error
// translation and content-type handling stay consistent across routes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "concur/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
// Messages for server-side failures are omitted so internal details
// (queries, hosts, driver errors) never reach the caller.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{
		"error": string(code),
	}
	if desc := callerSafeMessage(err, code); desc != "" {
		body["error_description"] = desc
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

func callerSafeMessage(err error, code dErrors.Code) string {
	switch code {
	case dErrors.CodeInternal, dErrors.CodeStoreFailure, dErrors.CodeCacheFailure, dErrors.CodeInvariantViolation:
		return ""
	}
	var e *dErrors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
