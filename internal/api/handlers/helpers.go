package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/caskfs/caskfs/internal/api/middleware"
	"github.com/caskfs/caskfs/pkg/vault"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// principalFromRequest derives the acting principal from the request's
// validated JWT claims. Returns false (with a 401 written) if the request
// carries no claims.
func principalFromRequest(w http.ResponseWriter, r *http.Request) (vault.Principal, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return vault.Principal{}, false
	}
	return vault.Principal{Name: claims.Username, Admin: claims.IsAdmin()}, true
}

// versionFromQuery parses the optional "version" query parameter.
// 0 means "latest". Returns false (with a 400 written) on a malformed value.
func versionFromQuery(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return 0, true
	}
	version, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || version == 0 {
		BadRequest(w, "Version must be a positive integer")
		return 0, false
	}
	return version, true
}
