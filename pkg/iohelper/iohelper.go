// Package iohelper bounds how much of a response the scanner will hold in
// memory and how much of it a check will look at.
package iohelper

import (
	"io"
	"unicode/utf8"
)

// drainLimit caps how much of an unread body is discarded to keep the
// connection reusable.
const drainLimit = 64 * 1024

// ReadBody reads at most maxSize bytes from r. A nil reader yields an empty
// body. truncated reports whether r held more than maxSize bytes.
func ReadBody(r io.Reader, maxSize int64) (body []byte, truncated bool, err error) {
	if r == nil {
		return []byte{}, false, nil
	}
	if maxSize <= 0 {
		body, err = io.ReadAll(r)
		return body, false, err
	}

	// One extra byte tells a body of exactly maxSize apart from a longer one.
	body, err = io.ReadAll(io.LimitReader(r, maxSize+1))
	if int64(len(body)) > maxSize {
		return body[:maxSize], true, err
	}
	return body, false, err
}

// DrainAndClose discards what is left of r (up to 64KB) and closes it when
// it is an io.ReadCloser. It always returns nil so it can be deferred.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, drainLimit))
	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}

// Head returns at most n bytes of s, backing off so a multi-byte rune is
// never split. n <= 0 returns s unchanged.
func Head(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Window returns s[start:start+n] clamped to the bounds of s.
func Window(s string, start, n int) string {
	if start < 0 {
		start = 0
	}
	if start >= len(s) {
		return ""
	}
	end := start + n
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}
