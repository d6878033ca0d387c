package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/caskfs/caskfs/internal/logger"
	"github.com/caskfs/caskfs/pkg/vault"
)

// FilesHandler handles file upload, download, and version history endpoints.
type FilesHandler struct {
	coordinator   *vault.Coordinator
	maxUploadSize int64
}

// NewFilesHandler creates a new FilesHandler. maxUploadSize caps upload
// request bodies; zero means no limit.
func NewFilesHandler(coordinator *vault.Coordinator, maxUploadSize int64) *FilesHandler {
	return &FilesHandler{coordinator: coordinator, maxUploadSize: maxUploadSize}
}

// FileSummary is a compact file representation for listings.
type FileSummary struct {
	Name           string `json:"name"`
	CurrentVersion uint64 `json:"current_version"`
	CurrentHash    string `json:"current_hash"`
	VersionCount   int    `json:"version_count"`
}

// Upload handles POST /api/v1/files/{name}.
// Streams the request body into the vault and returns the assigned version.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	principal, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	payload := r.Body
	if h.maxUploadSize > 0 {
		payload = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	record, err := h.coordinator.Submit(r.Context(), name, principal.Name, payload)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Upload exceeds the configured limit of %d bytes", tooLarge.Limit))
			return
		}
		writeStoreError(w, err)
		return
	}

	WriteJSONCreated(w, record)
}

// List handles GET /api/v1/files.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.coordinator.ListFiles(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	summaries := make([]FileSummary, 0, len(files))
	for _, file := range files {
		summary := FileSummary{
			Name:         file.Name,
			VersionCount: len(file.Versions),
		}
		if current := file.CurrentVersion(); current != nil {
			summary.CurrentVersion = current.Version
			summary.CurrentHash = current.ContentHash
		}
		summaries = append(summaries, summary)
	}

	WriteJSONOK(w, summaries)
}

// Get handles GET /api/v1/files/{name}.
// Returns the full version history for a file.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	file, err := h.coordinator.GetFile(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	WriteJSONOK(w, file)
}

// Download handles GET /api/v1/files/{name}/content.
// Streams the requested version's bytes; the "version" query parameter
// defaults to the latest version.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version, ok := versionFromQuery(w, r)
	if !ok {
		return
	}

	reader, record, err := h.coordinator.Open(r.Context(), name, version)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Debug("failed to close content reader", logger.KeyFile, name, logger.KeyError, err)
		}
	}()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Caskfs-Version", strconv.FormatUint(record.Version, 10))
	w.Header().Set("X-Caskfs-Content-Hash", record.ContentHash)

	if _, err := io.Copy(w, reader); err != nil {
		// Headers are already sent; all we can do is log the broken transfer.
		logger.Warn("download aborted",
			logger.KeyFile, name,
			logger.KeyVersion, record.Version,
			logger.KeyError, err)
	}
}

// Verify handles GET /api/v1/files/{name}/verify.
// Recomputes the stored content hash and compares it against the recorded
// one. A mismatch is reported in the body, not as an HTTP error.
func (h *FilesHandler) Verify(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version, ok := versionFromQuery(w, r)
	if !ok {
		return
	}

	result, err := h.coordinator.Verify(r.Context(), name, version)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	WriteJSONOK(w, result)
}
