package modules

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Registry maps IDs to modules. It is built once at startup and read
// concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	modules map[ID]Module
	order   []ID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[ID]Module)}
}

// Register adds m. Registering an ID twice is an error.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[m.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, m.ID())
	}
	r.modules[m.ID()] = m
	r.order = append(r.order, m.ID())
	return nil
}

// Lookup returns the module registered for id.
func (r *Registry) Lookup(id ID) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// IDs returns the registered IDs in registration order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Default returns a registry holding every built-in module in the
// recommended run order.
func Default() *Registry {
	r := NewRegistry()
	for _, m := range builtins() {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
	return r
}

// All is the recommended order for running every module.
var All = []ID{Policy, Crawl, Forms, CORS, Exposures, Redirect, JSMap, APIs, Mixed, XSS, SQLi, SSRF, Reflect, WAF, Stats}

// profiles are the named module sets.
var profiles = map[string][]ID{
	"light":     {XSS},
	"hardening": {Policy, CORS, Mixed},
	"api":       {Policy, JSMap, APIs, CORS, Reflect},
	"full":      All,
}

// DefaultProfile is used when neither modules nor a profile are given.
const DefaultProfile = "hardening"

// Profile returns the module list of a named profile, case-insensitively.
func Profile(name string) ([]ID, error) {
	ids, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownProfile, name, strings.Join(ProfileNames(), ", "))
	}
	return slices.Clone(ids), nil
}

// ProfileNames returns the known profile names sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseIDs turns user-supplied names into IDs. Names are trimmed and
// lower-cased, blanks are skipped, duplicates keep their first position.
// Any name outside the module set fails the whole list.
func ParseIDs(names []string) ([]ID, error) {
	var ids []ID
	seen := make(map[ID]bool)
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		id := ID(n)
		if !slices.Contains(All, id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModule, n)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ParseList splits a comma-separated list and parses it with ParseIDs.
func ParseList(list string) ([]ID, error) {
	return ParseIDs(strings.Split(list, ","))
}

// Names renders ids for display.
func Names(ids []ID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ", ")
}
