// Package ssrf flags query parameters that look like they make the server
// fetch a URL. It is passive: it only reads the target URL.
package ssrf

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/probe"
)

// Module is the name findings are reported under.
const Module = "ssrf"

// CandidateKeys mark a parameter when its lower-cased name contains one.
var CandidateKeys = []string{"url", "uri", "endpoint", "feed", "source", "dest", "redirect", "callback", "webhook"}

const maxValueLen = 160

// Analyze reports SSRF candidates among the parameters of target.
// The context is accepted for symmetry with the active checks.
func Analyze(_ context.Context, target string) ([]finding.Finding, error) {
	tgt, err := probe.ParseTarget(target)
	if err != nil {
		return nil, err
	}

	out := probe.NewFindings(Module)
	if len(tgt.Params) == 0 {
		out.Info("No parameters", "no query to analyze")
		return out.List(), nil
	}

	host := hostOf(tgt.Base)
	for _, p := range tgt.Params {
		if !isCandidate(p.Name) {
			continue
		}
		detail := p.Name + "=" + iohelper.Head(p.Value, maxValueLen)
		sev := finding.Info
		if u, ok := absoluteURL(p.Value); ok {
			sev = finding.Low
			detail += fmt.Sprintf(" (%s)", describe(u.Hostname(), host))
		}
		out.Add(sev, "SSRF candidate", detail)
	}

	if len(out.List()) == 0 {
		out.Info("No SSRF candidates", "")
	}
	return out.List(), nil
}

func isCandidate(name string) bool {
	low := strings.ToLower(name)
	for _, k := range CandidateKeys {
		if strings.Contains(low, k) {
			return true
		}
	}
	return false
}

func absoluteURL(v string) (*url.URL, bool) {
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return nil, false
	}
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// describe says where a candidate URL points relative to the target host.
func describe(candidate, target string) string {
	if Internal(candidate) {
		return "internal address"
	}
	if RegistrableDomain(candidate) == RegistrableDomain(target) {
		return "same site"
	}
	return "external domain"
}

// Internal reports whether host is localhost or a loopback, private or
// link-local IP literal.
func Internal(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return false
	}
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}

// RegistrableDomain returns the public suffix plus one label of host, or
// the host itself for IPs and names without a known suffix.
func RegistrableDomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if _, err := netip.ParseAddr(host); err == nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
