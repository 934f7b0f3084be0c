// Package modules binds every check to one closed set of identifiers and
// a common calling convention.
//
// Checks live in their own packages and know nothing of each other; this
// package adapts each of them to Module so the runner can drive a list of
// IDs without dispatching on names.
package modules

import (
	"context"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/crawler"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// ID identifies a module. The set is closed; see IDs.
type ID string

const (
	Crawl     ID = "crawl"
	Reflect   ID = "reflect"
	XSS       ID = "xss"
	SQLi      ID = "sqli"
	Redirect  ID = "redirect"
	WAF       ID = "waf"
	CORS      ID = "cors"
	SSRF      ID = "ssrf"
	Mixed     ID = "mixed"
	Stats     ID = "stats"
	Forms     ID = "forms"
	Policy    ID = "policy"
	JSMap     ID = "jsmap"
	APIs      ID = "apis"
	Exposures ID = "exposures"
)

// String returns the identifier as typed by users.
func (id ID) String() string {
	return string(id)
}

// Heading is the identifier in upper case, as printed above a module's
// findings.
func (id ID) Heading() string {
	return strings.ToUpper(string(id))
}

// Options carries the per-scan settings a module may read.
type Options struct {
	// Params are parameter names for xss, sqli and reflect.
	Params []string

	// Evasion enables alternate payload spellings in xss and sqli.
	Evasion bool

	// ExtraRoutes are additional /rest/ routes for apis.
	ExtraRoutes []string

	// Crawl bounds the crawl module.
	Crawl crawler.Config
}

// Module is one check.
type Module interface {
	ID() ID
	Description() string
	Run(ctx context.Context, client *scanclient.Client, target string, opts Options) ([]finding.Finding, error)
}
