package scanclient

import "net/http"

// Response is a fully read HTTP response. Body holds at most the client's
// MaxBodySize bytes; Truncated reports whether more was sent.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Truncated  bool

	// URL is the final URL after any redirects.
	URL string
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// ContentType returns the Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Len returns the number of body bytes held.
func (r *Response) Len() int {
	return len(r.Body)
}
