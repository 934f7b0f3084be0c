// Package crawler discovers same-host pages and parameters breadth first.
//
// Each path moves through Queued, Visited and Expanded. The visited set is
// checked when a path is popped, so no path is fetched twice and cycles
// are impossible. Only HTML pages above the depth limit, reached while the
// page budget still has room, are expanded.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// Module is the name crawl findings are reported under.
const Module = "crawl"

// Finding titles.
const (
	ParamPrefix     = "PARAM:"
	TitlePage       = "Page visited"
	TitleFetchError = "Fetch error"
	TitlePages      = "Pages visited"
	TitleParams     = "Parameters discovered"
)

// Fetcher is the part of the scan client the crawler needs.
type Fetcher interface {
	Get(ctx context.Context, path string, opts scanclient.GetOptions) (*scanclient.Response, error)
}

var _ Fetcher = (*scanclient.Client)(nil)

// Config bounds one crawl.
type Config struct {
	MaxDepth    int
	MaxPages    int
	MaxParams   int
	MaxPageSize int
	Logger      *slog.Logger
}

// DefaultConfig returns the crawl limits used when none are given.
func DefaultConfig() Config {
	return Config{
		MaxDepth:    defaults.CrawlDepth,
		MaxPages:    defaults.CrawlMaxPages,
		MaxParams:   defaults.CrawlMaxParams,
		MaxPageSize: defaults.MaxPageSize,
	}
}

// Page is one visited path.
type Page struct {
	Path       string
	Depth      int
	StatusCode int
}

// Param is a discovered parameter name and the page it was found on.
type Param struct {
	Name       string
	SourcePath string
	FromForm   bool
}

// Result is everything one crawl produced.
type Result struct {
	Pages    []Page
	Params   []Param
	Findings []finding.Finding
}

// ParamNames returns the discovered names in discovery order.
func (r *Result) ParamNames() []string {
	names := make([]string, len(r.Params))
	for i, p := range r.Params {
		names[i] = p.Name
	}
	return names
}

// Crawler walks one target. It is not safe for concurrent Crawl calls;
// each scan builds its own.
type Crawler struct {
	client Fetcher
	cfg    Config
	logger *slog.Logger
}

// New returns a crawler. Zero MaxPages, MaxParams and MaxPageSize take
// their defaults. MaxDepth 0 fetches only the start page; callers holding
// a zero Config should pass DefaultConfig instead.
func New(client Fetcher, cfg Config) *Crawler {
	d := DefaultConfig()
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = d.MaxPages
	}
	if cfg.MaxParams <= 0 {
		cfg.MaxParams = d.MaxParams
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = d.MaxPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{client: client, cfg: cfg, logger: logger}
}

type queued struct {
	path  string
	depth int
}

// state is local to one Crawl call.
type state struct {
	root    *url.URL
	queue   []queued
	queued  map[string]bool
	visited map[string]bool
	params  map[string]bool
	result  *Result
}

// Crawl walks target breadth first. A budget or context error stops the
// crawl; the partial result is returned together with that error. Other
// fetch errors become findings and the crawl continues.
func (c *Crawler) Crawl(ctx context.Context, target string) (*Result, error) {
	root, err := scanclient.RootURL(target)
	if err != nil {
		return nil, err
	}
	start, _ := url.Parse(target)

	s := &state{
		root:    root,
		queued:  make(map[string]bool),
		visited: make(map[string]bool),
		params:  make(map[string]bool),
		result:  &Result{},
	}
	s.push(normPath(start), 0)

	var fatal error
	for len(s.queue) > 0 && len(s.result.Pages) < c.cfg.MaxPages {
		item := s.queue[0]
		s.queue = s.queue[1:]
		if s.visited[item.path] {
			continue
		}
		s.visited[item.path] = true

		resp, err := c.client.Get(ctx, item.path, scanclient.GetOptions{})
		if err != nil {
			if scanclient.Fatal(err) {
				fatal = err
				break
			}
			s.add(TitleFetchError, fmt.Sprintf("%s: %v", item.path, err))
			c.logger.Debug("crawl fetch failed", slog.String("path", item.path), slog.String("error", err.Error()))
			continue
		}

		fetched := len(s.result.Pages)
		s.result.Pages = append(s.result.Pages, Page{Path: item.path, Depth: item.depth, StatusCode: resp.StatusCode})
		if isHTML(resp.ContentType()) && resp.Len() > 0 &&
			item.depth < c.cfg.MaxDepth && fetched < c.cfg.MaxPages {
			c.expand(s, item, resp)
		}
		s.add(TitlePage, fmt.Sprintf("%s status=%d", item.path, resp.StatusCode))
	}

	s.add(TitlePages, strconv.Itoa(len(s.result.Pages)))
	s.add(TitleParams, strconv.Itoa(len(s.result.Params)))
	c.logger.Debug("crawl finished",
		slog.Int("pages", len(s.result.Pages)),
		slog.Int("params", len(s.result.Params)))
	return s.result, fatal
}

// expand extracts links and parameters from an HTML page.
func (c *Crawler) expand(s *state, item queued, resp *scanclient.Response) {
	body := iohelper.Head(resp.Text(), c.cfg.MaxPageSize)

	pageURL := s.root.ResolveReference(&url.URL{Path: item.path})
	if resp.URL != "" {
		if u, err := url.Parse(resp.URL); err == nil {
			pageURL = u
		}
	}

	for _, link := range extractLinks(body, pageURL) {
		if !sameOrigin(s.root, link) {
			continue
		}
		path := normPath(link)
		if !s.visited[path] && !s.queued[path] {
			s.push(path, item.depth+1)
		}
		for _, name := range queryNames(link.RawQuery) {
			if s.addParam(name, c.cfg.MaxParams) {
				s.result.Params = append(s.result.Params, Param{Name: name, SourcePath: path})
				s.add(ParamPrefix+name, "from link "+path)
			}
		}
	}

	for _, name := range extractGETFormInputs(body) {
		if s.addParam(name, c.cfg.MaxParams) {
			s.result.Params = append(s.result.Params, Param{Name: name, SourcePath: item.path, FromForm: true})
			s.add(ParamPrefix+name, "from GET form")
		}
	}
}

func (s *state) push(path string, depth int) {
	s.queue = append(s.queue, queued{path: path, depth: depth})
	s.queued[path] = true
}

func (s *state) add(title, detail string) {
	s.result.Findings = append(s.result.Findings, finding.New(Module, finding.Info, title, detail))
}

// addParam reports whether name is new and fits under the cap.
func (s *state) addParam(name string, max int) bool {
	if name == "" || s.params[name] || len(s.params) >= max {
		return false
	}
	s.params[name] = true
	return true
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func sameOrigin(root, u *url.URL) bool {
	return strings.EqualFold(root.Scheme, u.Scheme) && strings.EqualFold(root.Host, u.Host)
}

// normPath reduces u to its path; empty becomes "/" and a leading "/" is
// always present.
func normPath(u *url.URL) string {
	if u == nil || u.Path == "" {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") {
		return "/" + u.Path
	}
	return u.Path
}

// ParamsFromFindings returns the parameter names carried by crawl
// findings, in order and without duplicates.
func ParamsFromFindings(findings []finding.Finding) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range findings {
		if f.Module != Module || !strings.HasPrefix(f.Title, ParamPrefix) {
			continue
		}
		name := strings.TrimPrefix(f.Title, ParamPrefix)
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
