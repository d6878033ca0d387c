package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/caskfs/caskfs/pkg/metadata"
)

// writeStoreError translates a metadata store error into the appropriate
// RFC 7807 problem response. Unknown errors become 500s with a generic
// detail so internal state does not leak to clients.
func writeStoreError(w http.ResponseWriter, err error) {
	var storeErr *metadata.StoreError
	if !errors.As(err, &storeErr) {
		InternalServerError(w, "an unexpected error occurred")
		return
	}

	switch storeErr.Code {
	case metadata.ErrNotFound, metadata.ErrVersionNotFound:
		NotFound(w, storeErr.Message)
	case metadata.ErrFileLocked:
		detail := storeErr.Message
		if storeErr.Holder != "" {
			detail = fmt.Sprintf("%s (held by %s)", storeErr.Message, storeErr.Holder)
		}
		Conflict(w, detail)
	case metadata.ErrInvalidArgument:
		BadRequest(w, storeErr.Message)
	case metadata.ErrPrivilegeRequired:
		Forbidden(w, storeErr.Message)
	case metadata.ErrStorageFailure, metadata.ErrHashFailure:
		InternalServerError(w, storeErr.Message)
	default:
		InternalServerError(w, "an unexpected error occurred")
	}
}
