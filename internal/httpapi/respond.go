// Package httpapi holds the chi routers and handlers exposed by the three
// saga services. Authentication lives in the API gateway, which forwards the
// caller's identity as X-User-Id / X-User-Role headers; handlers here only
// enforce that contract.
package httpapi

import (
	"encoding/json"
	"net/http"
)

// HeaderUserRole is set by the gateway after verifying the caller's token.
const HeaderUserRole = "X-User-Role"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderUserRole) != "admin" {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	}
}
