package config

import "time"

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultCacheDir    = "./data/cache"
	DefaultMaxMemoryMB = 48
	DefaultCacheTTL    = 7 * 24 * time.Hour
)

// Background tasks
const (
	BadgerGCInterval     = 10 * time.Minute
	BadgerGCDiscardRatio = 0.5
	SessionSweepInterval = 5 * time.Minute
	DefaultSessionIdle   = 2 * time.Hour
)

// Load and query timeouts and limits
const (
	LoadTimeout     = 5 * time.Minute
	QueryTimeout    = 30 * time.Second
	QueryRowLimit   = 10000
	MaxSessions     = 16
	ShutdownTimeout = 10 * time.Second

	// Loads answer synchronously, so writes may take as long as a load.
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = LoadTimeout + time.Minute
)

// Export defaults
const (
	DefaultDelimiter = ";"
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 16
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
