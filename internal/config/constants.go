package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Default rate limiting for authenticated API calls
const DefaultRateLimitPerMin = 120

// Attachment upload limit
const MaxUploadBytes = 5 << 20 // 5MB

// Request body cap: the largest legitimate request is a multipart upload,
// so leave headroom above MaxUploadBytes for the form framing.
const MaxRequestBodyBytes = MaxUploadBytes + (1 << 20)
