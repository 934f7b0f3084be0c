package crawler

import (
	"net/url"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/regexcache"
)

// Markup is matched with regular expressions, not parsed. Malformed pages
// may hide links or inputs; that is accepted.
const (
	hrefPattern   = `href=["']([^"'#]+)`
	formPattern   = `(?i)<form[^>]+>`
	inputPattern  = `(?i)<input[^>]+name=["']([^"']+)`
	methodPattern = `(?i)method=["']([^"']+)`

	// formWindow is how far past a form tag inputs are attributed to it.
	formWindow = 2000
)

// extractLinks returns the href targets of body resolved against base, in
// order of appearance. mailto: and javascript: links are dropped.
func extractLinks(body string, base *url.URL) []*url.URL {
	var links []*url.URL
	for _, href := range regexcache.Submatches(hrefPattern, body) {
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)
		if href == "" || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		links = append(links, base.ResolveReference(ref))
	}
	return links
}

// queryNames returns the parameter names of a raw query string in order
// of appearance.
func queryNames(rawQuery string) []string {
	var names []string
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if name, err := url.QueryUnescape(key); err == nil && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// extractGETFormInputs returns the input names following each GET form
// tag. A form without a method attribute is a GET form.
func extractGETFormInputs(body string) []string {
	var names []string
	for _, loc := range regexcache.MustGet(formPattern).FindAllStringIndex(body, -1) {
		tag := body[loc[0]:loc[1]]
		method := "get"
		if m := regexcache.MustGet(methodPattern).FindStringSubmatch(tag); m != nil {
			method = strings.ToLower(m[1])
		}
		if method != "get" {
			continue
		}
		window := iohelper.Window(body, loc[0], formWindow)
		names = append(names, regexcache.Submatches(inputPattern, window)...)
	}
	return names
}
