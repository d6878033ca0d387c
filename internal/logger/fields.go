package logger

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that log
// aggregation and querying stay uniform across components.
const (
	// Request handling
	KeyRequestID = "request_id" // chi request ID for correlation
	KeyClientIP  = "client_ip"  // client IP address
	KeyMethod    = "method"     // HTTP method
	KeyPath      = "path"       // request path
	KeyStatus    = "status"     // HTTP status code

	// Versioning domain
	KeyFile      = "file"      // logical file name
	KeyVersion   = "version"   // version number
	KeyHash      = "hash"      // content hash (hex)
	KeyHolder    = "holder"    // current lock holder
	KeyPrincipal = "principal" // authenticated principal performing the action
	KeyStorage   = "storage"   // blob storage path
	KeySize      = "size"      // blob size in bytes

	// Store / infrastructure
	KeyBackend  = "backend"  // store backend name (file, badger, memory, fs, s3)
	KeyDuration = "duration" // operation duration in milliseconds
	KeyError    = "error"    // error detail
)
