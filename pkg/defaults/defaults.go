// Package defaults provides canonical default values for the scanner.
// Every tunable with a default lives here so the CLI, the API server and
// the config loader agree on one value.
//
// Usage:
//
//	cfg.MaxRPS = defaults.MaxRPS
//	req.Header.Set(defaults.HeaderName, defaults.HeaderValue)
//
// DO NOT repeat these literals elsewhere; reference the constant.
package defaults

import "fmt"

// Version is the current scanner version
const Version = "0.2.0"

// ToolName is used for service names, metric prefixes and the banner.
const ToolName = "vulnscan"

// ============================================================================
// IDENTIFICATION
// ============================================================================
//
// Every outbound request carries the identifying header pair and the
// user agent so the target's operators can attribute the traffic.
// ============================================================================

const (
	// HeaderName is the identifying header attached to every request
	HeaderName = "X-BugBounty"

	// HeaderValue is the fixed identifier value for HeaderName
	HeaderValue = "e587b4d9-5dc2-4a6d-87d0-a46984a87b63"

	// UserAgent is the descriptive user agent string
	UserAgent = "VulnScan/0.2 (+ethical)"
)

// ============================================================================
// SAFETY BUDGET
// ============================================================================

const (
	// MaxRPS is the default requests-per-second ceiling (6)
	MaxRPS = 6.0

	// MaxRPSCeiling is the hard cap applied to user supplied rates (10)
	MaxRPSCeiling = 10.0

	// TimeoutSeconds is the default per-request timeout (12)
	TimeoutSeconds = 12

	// MaxRequests of 0 leaves the global request budget unlimited
	MaxRequests = 0
)

// ============================================================================
// CRAWL / DISCOVERY LIMITS
// ============================================================================

const (
	// CrawlDepth is the default maximum link depth (1)
	CrawlDepth = 1

	// CrawlMaxPages is the default page budget for one crawl (20)
	CrawlMaxPages = 20

	// CrawlMaxParams caps discovered parameters per crawl (200)
	CrawlMaxParams = 200

	// AutoParamsLimit caps crawl parameters fed to xss/sqli (12)
	AutoParamsLimit = 12
)

// ============================================================================
// BODY SIZE LIMITS
// ============================================================================

const (
	// MaxBodySize bounds how much of any response the client keeps (2MB)
	MaxBodySize int64 = 2 * 1024 * 1024

	// MaxPageSize is how much of a page the crawler inspects (400000)
	MaxPageSize = 400_000
)

// ============================================================================
// SERVICE
// ============================================================================

const (
	// ListenAddr is the default address of the scan API server
	ListenAddr = "127.0.0.1:5000"

	// Profile is used when an API request names no profile
	Profile = "full"

	// MaxActiveScans bounds concurrently running API scans
	MaxActiveScans = 8
)

// Banner returns the one-line product banner.
func Banner() string {
	return fmt.Sprintf("VulnScan %s (restricted ethical scanner)", Version)
}
