// Package duration provides canonical time constants for the scanner.
// This is the single source of truth for time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.ScanTimeout)
//	if now.Sub(last) < duration.AdaptiveDebounce {
//
// DO NOT use hardcoded time.Duration values in packages; reference these.
package duration

import "time"

// ============================================================================
// HTTP CLIENT TIMEOUTS
// ============================================================================

const (
	// HTTPRequest is the default per-request timeout (12s)
	HTTPRequest = 12 * time.Second

	// DialTimeout bounds TCP connection establishment (10s)
	DialTimeout = 10 * time.Second

	// KeepAlive is the TCP keep-alive period (30s)
	KeepAlive = 30 * time.Second

	// IdleConnTimeout is how long idle connections stay pooled (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake bounds the TLS handshake (10s)
	TLSHandshake = 10 * time.Second
)

// ============================================================================
// RATE CONTROL
// ============================================================================

const (
	// RateWindow is the sliding admission window of the limiter (1s)
	RateWindow = 1 * time.Second

	// AdaptiveDebounce is the minimum gap between ceiling adjustments (2s)
	AdaptiveDebounce = 2 * time.Second

	// XSSAttemptPause spaces consecutive XSS attempts (150ms)
	XSSAttemptPause = 150 * time.Millisecond
)

// ============================================================================
// SCAN LIFECYCLE
// ============================================================================

const (
	// ScanTimeout is the hard ceiling for one API-submitted scan (10min)
	ScanTimeout = 10 * time.Minute

	// ScanTTL is how long finished scans stay in the store (1h)
	ScanTTL = 1 * time.Hour

	// CleanupInterval is how often the store evicts expired scans (5min)
	CleanupInterval = 5 * time.Minute

	// Shutdown bounds graceful shutdown of servers and workers (10s)
	Shutdown = 10 * time.Second

	// OTLPConnect bounds the initial OTLP exporter setup (10s)
	OTLPConnect = 10 * time.Second
)

// ============================================================================
// API SERVER
// ============================================================================

const (
	// ServerReadHeader bounds request header reads (5s)
	ServerReadHeader = 5 * time.Second

	// ServerRead bounds full request reads (15s)
	ServerRead = 15 * time.Second

	// ServerWrite bounds response writes (30s)
	ServerWrite = 30 * time.Second
)
