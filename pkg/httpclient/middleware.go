package httpclient

import "net/http"

// headerTransport sets default headers on outgoing requests. A header the
// request already carries is left alone, so callers win on conflict.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (h *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for key, vals := range h.headers {
		if r.Header.Get(key) != "" {
			continue
		}
		for _, v := range vals {
			r.Header.Add(key, v)
		}
	}
	return h.base.RoundTrip(r)
}

// MergeHeaders returns defaults overlaid with overrides. Keys are
// canonicalized so "user-agent" and "User-Agent" collide.
func MergeHeaders(defaults, overrides map[string]string) http.Header {
	h := make(http.Header, len(defaults)+len(overrides))
	for k, v := range defaults {
		h.Set(k, v)
	}
	for k, v := range overrides {
		h.Set(k, v)
	}
	return h
}
