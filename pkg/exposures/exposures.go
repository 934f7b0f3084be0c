// Package exposures checks a short fixed list of files that should never
// be served publicly. It is not a wordlist scan.
package exposures

import (
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
const Module = "exposures"

// Finding titles.
const (
	TitleExposed  = "Sensitive file accessible"
	TitleRedirect = "Sensitive file redirected"
	TitleError    = "Sensitive file request error"
	TitleNone     = "No exposed files"
)

const (
	maxBody    = 1000
	maxSnippet = 120
)

// Impact groups paths by what leaking them would give away.
type Impact string

const (
	ImpactEnv    Impact = "env"
	ImpactGit    Impact = "git"
	ImpactDB     Impact = "db"
	ImpactBackup Impact = "backup"
	ImpactConfig Impact = "config"
	ImpactMisc   Impact = "misc"
	ImpactPolicy Impact = "policy"
	ImpactLegacy Impact = "legacy"
)

// Severity maps an impact to the severity of an exposed file.
func (i Impact) Severity() finding.Severity {
	switch i {
	case ImpactEnv, ImpactGit, ImpactDB:
		return finding.Medium
	case ImpactMisc, ImpactLegacy, ImpactPolicy:
		return finding.Info
	default:
		return finding.Low
	}
}

// Path is one checked location, relative to the scan root.
type Path struct {
	Path   string
	Impact Impact
}

// Paths are checked in order.
var Paths = []Path{
	{".env", ImpactEnv},
	{".git/config", ImpactGit},
	{"db.sql", ImpactDB},
	{"backup.zip", ImpactBackup},
	{"backup.sql", ImpactDB},
	{"config.php", ImpactConfig},
	{"composer.json", ImpactConfig},
	{"package.json", ImpactConfig},
	{".DS_Store", ImpactMisc},
	{".well-known/security.txt", ImpactPolicy},
	{".well-known/assetlinks.json", ImpactMisc},
	{"crossdomain.xml", ImpactLegacy},
}

// Client is the part of the scan client the check needs.
type Client interface {
	probe.Getter
	Head(ctx context.Context, path string) (*scanclient.Response, error)
}

var _ Client = (*scanclient.Client)(nil)

// Run checks every path with HEAD, retrying with GET when the target
// answers 405. A 200 is reported at the path's impact severity; a final
// redirect status is noted as info.
func Run(ctx context.Context, client Client) ([]finding.Finding, error) {
	out := probe.NewFindings(Module)

	for _, p := range Paths {
		resp, err := fetch(ctx, client, p.Path)
		if err != nil {
			if probe.Fatal(err) {
				return out.List(), err
			}
			out.Info(TitleError, fmt.Sprintf("/%s: %v", p.Path, err))
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			out.Add(p.Impact.Severity(), TitleExposed, detail(ctx, client, p.Path, resp))
		case isRedirect(resp.StatusCode):
			out.Info(TitleRedirect, fmt.Sprintf("/%s -> %d", p.Path, resp.StatusCode))
		}
	}

	if len(out.List()) == 0 {
		out.Info(TitleNone, "")
	}
	return out.List(), nil
}

func fetch(ctx context.Context, client Client, path string) (*scanclient.Response, error) {
	resp, err := client.Head(ctx, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed {
		return client.Get(ctx, path, scanclient.GetOptions{})
	}
	return resp, nil
}

// detail prefers the advertised length. Without one it falls back to a
// short snippet of the body, fetching it when the response had none.
func detail(ctx context.Context, client Client, path string, resp *scanclient.Response) string {
	parts := []string{"status=200", "path=/" + path}
	if size := resp.Header.Get("Content-Length"); size != "" {
		return strings.Join(append(parts, "len="+size), " ")
	}

	body := resp.Text()
	if body == "" {
		if g, err := client.Get(ctx, path, scanclient.GetOptions{}); err == nil {
			body = g.Text()
		}
	}
	snippet := iohelper.Head(body, maxBody)
	if snippet != "" {
		snippet = strings.ReplaceAll(snippet, "\n", " ")
		parts = append(parts, "snippet="+iohelper.Head(snippet, maxSnippet))
	}
	return strings.Join(parts, " ")
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
