package content

import "errors"

// ErrContentNotFound indicates the requested blob does not exist.
//
// Implementations wrap it with the content ID for context:
//
//	return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
var ErrContentNotFound = errors.New("content not found")
