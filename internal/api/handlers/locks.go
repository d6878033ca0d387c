package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caskfs/caskfs/pkg/vault"
)

// LocksHandler handles explicit lock management endpoints.
type LocksHandler struct {
	coordinator *vault.Coordinator
}

// NewLocksHandler creates a new LocksHandler.
func NewLocksHandler(coordinator *vault.Coordinator) *LocksHandler {
	return &LocksHandler{coordinator: coordinator}
}

// List handles GET /api/v1/locks.
func (h *LocksHandler) List(w http.ResponseWriter, r *http.Request) {
	locks, err := h.coordinator.ListLocks(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	WriteJSONOK(w, locks)
}

// Get handles GET /api/v1/locks/{name}.
// Returns the lock entry for a file, or 404 if the file is unlocked.
func (h *LocksHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	entry, err := h.coordinator.GetLock(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if entry == nil {
		NotFound(w, "File is not locked")
		return
	}
	WriteJSONOK(w, entry)
}

// Acquire handles POST /api/v1/locks/{name}.
// Grants the caller exclusive write access to the file, failing fast with
// 409 if another principal already holds it.
func (h *LocksHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	principal, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.coordinator.AcquireLock(r.Context(), name, principal); err != nil {
		writeStoreError(w, err)
		return
	}

	entry, err := h.coordinator.GetLock(r.Context(), name)
	if err != nil || entry == nil {
		WriteNoContent(w)
		return
	}
	WriteJSONCreated(w, entry)
}

// Release handles DELETE /api/v1/locks/{name}.
// Only the lock holder may release; releasing an unheld lock succeeds.
func (h *LocksHandler) Release(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	principal, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.coordinator.ReleaseLock(r.Context(), name, principal); err != nil {
		writeStoreError(w, err)
		return
	}
	WriteNoContent(w)
}

// ForceRelease handles DELETE /api/v1/locks/{name}/force.
// Administrative override that releases a lock regardless of holder.
func (h *LocksHandler) ForceRelease(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	principal, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.coordinator.ForceUnlock(r.Context(), name, principal); err != nil {
		writeStoreError(w, err)
		return
	}
	WriteNoContent(w)
}
