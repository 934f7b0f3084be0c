// Package regexcache compiles each pattern once and shares the result.
//
// The scanner's HTML and JavaScript extraction is regex based; the checks
// look their patterns up here instead of holding package-level vars so
// that every pattern is compiled lazily and exactly once.
package regexcache

import (
	"regexp"
	"sync"
)

var (
	mu    sync.RWMutex
	cache = make(map[string]*regexp.Regexp)
)

// Get returns the compiled form of pattern, compiling it on first use.
func Get(pattern string) (*regexp.Regexp, error) {
	mu.RLock()
	re, ok := cache[pattern]
	mu.RUnlock()
	if ok {
		return re, nil
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if re, ok := cache[pattern]; ok {
		return re, nil
	}
	cache[pattern] = compiled
	return compiled, nil
}

// MustGet is Get for patterns known to be valid. It panics otherwise.
func MustGet(pattern string) *regexp.Regexp {
	re, err := Get(pattern)
	if err != nil {
		panic("regexcache: " + err.Error())
	}
	return re
}

// Submatches returns capture group 1 of every match of pattern in s.
func Submatches(pattern, s string) []string {
	matches := MustGet(pattern).FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			out = append(out, m[1])
		}
	}
	return out
}

// Size returns the number of compiled patterns held.
func Size() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(cache)
}

// Reset drops every compiled pattern.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cache = make(map[string]*regexp.Regexp)
}
