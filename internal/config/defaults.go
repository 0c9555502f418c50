// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// TOKEN CACHE
// =============================================================================

// TokenExpirySkew is the safety margin subtracted from a bearer token's
// expires_at when deciding whether it is still usable.
const TokenExpirySkew = 60 * time.Second

// PreRefreshMargin controls when the background pre-refresh task wakes,
// expressed as a multiple of TokenExpirySkew before expiry.
const PreRefreshMargin = 2 * TokenExpirySkew

// =============================================================================
// HTTP AND NETWORKING
// =============================================================================

// DefaultBufferSize is the standard I/O buffer size for streamed bodies.
const DefaultBufferSize = 4096

// DefaultDialTimeout is the TCP dial timeout for upstream connections.
const DefaultDialTimeout = 30 * time.Second

// MaxRequestBodySize is the maximum allowed inbound request body (50MB).
const MaxRequestBodySize = 50 * 1024 * 1024

// MaxErrorBodyLogLen limits error response body in logs to prevent bloat.
const MaxErrorBodyLogLen = 500

// DefaultServerWriteTimeout for the HTTP server (safe for SSE streaming).
const DefaultServerWriteTimeout = 10 * time.Minute

// DefaultServerReadHeaderTimeout bounds how long the server waits for
// request headers before aborting the connection.
const DefaultServerReadHeaderTimeout = 10 * time.Second
