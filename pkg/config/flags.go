package config

import (
	"fmt"
	"sort"
	"strings"
)

// listFlag implements flag.Value for repeated or comma-separated strings.
// The first Set replaces whatever the config file provided; later ones
// append.
type listFlag struct {
	vals *[]string
	set  bool
}

func (l *listFlag) String() string {
	if l.vals == nil {
		return ""
	}
	return strings.Join(*l.vals, ",")
}

func (l *listFlag) Set(value string) error {
	if !l.set {
		*l.vals = nil
		l.set = true
	}
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			*l.vals = append(*l.vals, v)
		}
	}
	return nil
}

// headerFlag implements flag.Value for repeated "Name: value" headers.
type headerFlag struct {
	headers *map[string]string
}

func (h *headerFlag) String() string {
	if h.headers == nil || len(*h.headers) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(*h.headers))
	for k, v := range *h.headers {
		pairs = append(pairs, k+": "+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (h *headerFlag) Set(value string) error {
	name, val, ok := strings.Cut(value, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("%w: header %q is not \"Name: value\"", ErrInvalidConfig, value)
	}
	if *h.headers == nil {
		*h.headers = make(map[string]string)
	}
	(*h.headers)[name] = strings.TrimSpace(val)
	return nil
}
