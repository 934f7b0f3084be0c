// Package policy reads the target's security.txt and reports which of the
// standard fields it declares.
package policy

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/probe"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// Module is the name findings are reported under.
const Module = "policy"

// Path is fetched relative to the scan root.
const Path = ".well-known/security.txt"

const (
	maxBody     = 8000
	maxValueLen = 160
)

var (
	// RequiredFields must be present in a valid file.
	RequiredFields = []string{"contact"}

	// OptionalFields are reported when present.
	OptionalFields = []string{"encryption", "acknowledgments", "preferred-languages", "policy", "hiring"}
)

// Run fetches security.txt and reports missing required fields (low),
// present optional fields (info) and the number of distinct fields.
func Run(ctx context.Context, client probe.Getter) ([]finding.Finding, error) {
	out := probe.NewFindings(Module)

	resp, err := client.Get(ctx, Path, scanclient.GetOptions{})
	if err != nil {
		if probe.Fatal(err) {
			return out.List(), err
		}
		out.Info("security.txt error", err.Error())
		return out.List(), nil
	}
	if resp.StatusCode != http.StatusOK {
		out.Info("security.txt missing", fmt.Sprintf("status=%d", resp.StatusCode))
		return out.List(), nil
	}

	fields := Parse(iohelper.Head(resp.Text(), maxBody))
	for _, f := range RequiredFields {
		if _, ok := fields[f]; !ok {
			out.Add(finding.Low, "Required field missing", f)
		}
	}
	for _, f := range OptionalFields {
		if v, ok := fields[f]; ok {
			out.Info("Field "+f, iohelper.Head(strings.Join(v, ", "), maxValueLen))
		}
	}
	out.Info("security.txt found", fmt.Sprintf("fields=%d", len(fields)))
	return out.List(), nil
}

// Parse collects "Name: value" lines keyed by lower-cased name. Blank lines
// and comments are skipped; repeated names keep every value.
func Parse(body string) map[string][]string {
	fields := make(map[string][]string)
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		fields[key] = append(fields[key], strings.TrimSpace(v))
	}
	return fields
}
