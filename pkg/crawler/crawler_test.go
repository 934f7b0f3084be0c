package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulnscan/vulnscan/pkg/budget"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

type page struct {
	status      int
	contentType string
	body        string
	err         error
}

// fakeSite serves canned pages and records every fetch.
type fakeSite struct {
	base    string
	pages   map[string]page
	fetched []string
}

func (f *fakeSite) Get(_ context.Context, path string, _ scanclient.GetOptions) (*scanclient.Response, error) {
	f.fetched = append(f.fetched, path)
	p, ok := f.pages[path]
	if !ok {
		return &scanclient.Response{StatusCode: 404, Header: http.Header{}, URL: f.base + path}, nil
	}
	if p.err != nil {
		return nil, p.err
	}
	h := http.Header{}
	ct := p.contentType
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}
	h.Set("Content-Type", ct)
	status := p.status
	if status == 0 {
		status = 200
	}
	return &scanclient.Response{StatusCode: status, Header: h, Body: []byte(p.body), URL: f.base + path}, nil
}

func titles(fs []finding.Finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Title
	}
	return out
}

func detailOf(t *testing.T, fs []finding.Finding, title string) string {
	t.Helper()
	for _, f := range fs {
		if f.Title == title {
			return f.Detail
		}
	}
	t.Fatalf("no finding titled %q in %v", title, titles(fs))
	return ""
}

func TestCrawl_EndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/next" {
			fmt.Fprint(w, `<html><a href="/deeper">deeper</a></html>`)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/next?x=2">next</a></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := scanclient.New(scanclient.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	c := New(client, Config{MaxDepth: 1, MaxPages: 5})
	res, err := c.Crawl(context.Background(), srv.URL+"/?id=1")
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, res.ParamNames())
	require.Len(t, res.Pages, 2)
	assert.Equal(t, "/", res.Pages[0].Path)
	assert.Equal(t, "/next", res.Pages[1].Path)
	assert.Equal(t, 1, res.Pages[1].Depth)

	assert.Equal(t, "2", detailOf(t, res.Findings, TitlePages))
	assert.Equal(t, "1", detailOf(t, res.Findings, TitleParams))
	assert.Equal(t, "from link /next", detailOf(t, res.Findings, "PARAM:x"))
	assert.Equal(t, int64(2), client.Requests())

	for _, f := range res.Findings {
		assert.Equal(t, Module, f.Module)
		assert.Equal(t, finding.Info, f.Severity)
	}
}

func TestCrawl_CycleVisitsEachPathOnce(t *testing.T) {
	site := &fakeSite{base: "http://site.test", pages: map[string]page{
		"/":  {body: `<a href="/a">a</a><a href="/b">b</a><a href="/">home</a>`},
		"/a": {body: `<a href="/b">b</a><a href="/">home</a><a href="/a">self</a>`},
		"/b": {body: `<a href="/a">a</a><a href="">empty</a>`},
	}}

	res, err := New(site, Config{MaxDepth: 10, MaxPages: 50}).Crawl(context.Background(), "http://site.test/")
	require.NoError(t, err)

	assert.Equal(t, []string{"/", "/a", "/b"}, site.fetched)
	assert.Len(t, res.Pages, 3)
}

func TestCrawl_BreadthFirstOrder(t *testing.T) {
	site := &fakeSite{base: "http://site.test", pages: map[string]page{
		"/":   {body: `<a href="/a">a</a><a href="/b">b</a>`},
		"/a":  {body: `<a href="/a1">a1</a>`},
		"/b":  {body: `<a href="/b1">b1</a>`},
		"/a1": {body: ``},
		"/b1": {body: ``},
	}}

	_, err := New(site, Config{MaxDepth: 5, MaxPages: 50}).Crawl(context.Background(), "http://site.test/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/a", "/b", "/a1", "/b1"}, site.fetched)
}

func TestCrawl_MaxPagesHalts(t *testing.T) {
	var links strings.Builder
	pages := map[string]page{}
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&links, `<a href="/p%d">p</a>`, i)
		pages[fmt.Sprintf("/p%d", i)] = page{body: "leaf"}
	}
	pages["/"] = page{body: links.String()}
	site := &fakeSite{base: "http://site.test", pages: pages}

	res, err := New(site, Config{MaxDepth: 3, MaxPages: 4}).Crawl(context.Background(), "http://site.test/")
	require.NoError(t, err)
	assert.Len(t, res.Pages, 4)
	assert.Len(t, site.fetched, 4)
	assert.Equal(t, "4", detailOf(t, res.Findings, TitlePages))
}

func TestCrawl_DepthZeroOnlyFetchesStart(t *testing.T) {
	site := &fakeSite{base: "http://site.test", pages: map[string]page{
		"/": {body: `<a href="/a?q=1">a</a>`},
	}}
	res, err := New(site, Config{MaxDepth: 0, MaxPages: 10}).Crawl(context.Background(), "http://site.test/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, site.fetched)
	assert.Empty(t, res.Params, "pages at the depth limit are not expanded")
}

func TestCrawl_SinglePageBudgetStillExtractsParams(t *testing.T) {
	site := &fakeSite{base: "http://site.test", pages: map[string]page{
		"/": {body: `<a href="/a?q=1">a</a><form><input name="term"></form>`},
	}}
	res, err := New(site, Config{MaxDepth: 1, MaxPages: 1}).Crawl(context.Background(), "http://site.test/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, site.fetched)
	assert.Equal(t, []string{"q", "term"}, res.ParamNames())
}

func TestCrawl_SkipsForeignAndPseudoLinks(t *testing.T) {
	site := &fakeSite{base: "http://site.test", pages: map[string]page{
		"/": {body: `
			<a href="mailto:sec@site.test">mail</a>
			<a href="javascript:void(0)">js</a>
			<a href="http://other.test/x?evil=1">other host</a>
			<a href="https://site.test/tls">other scheme</a>
			<a href="#top">fragment</a>
			<a href="/ok?good=1">ok</a>`},
	}}

	res, err := New(site, Config{MaxDepth: 1, MaxPages: 10}).Crawl(context.Background(), "http://site.test/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/ok"}, site.fetched)
	assert.Equal(t, []string{"good"}, res.ParamNames())
}

func TestCrawl_RelativeLinksResolveAgainstPage(t *testing.T) {
	site := &fakeSite{base: "http://site.test", pages: map[string]page{
		"/docs/":      {body: `<a href="intro?lang=en">intro</a>`},
		"/docs/intro": {body: ``},
	}}
	_, err := New(site, Config{MaxDepth: 1, MaxPages: 10}).Crawl(context.Background(), "http://site.test/docs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/", "/docs/intro"}, site.fetched)
}

func TestCrawl_ParamsFromLinksAndForms(t *testing.T) {
	site := &fakeSite{base: "http://site.test", pages: map[string]page{
		"/": {body: `
			<a href="/s?q=1&page=2&q=3">search</a>
			<form action="/find" method="GET"><input type="text" name="term"><input name='sort'></form>
			<form action="/login" method="post"><input name="password"></form>
			<form action="/filter"><input name="color"></form>`},
	}}

	res, err := New(site, Config{MaxDepth: 1, MaxPages: 10}).Crawl(context.Background(), "http://site.test/")
	require.NoError(t, err)

	// The first GET form's input window runs past its closing tag, so the
	// POST form's input is picked up as well.
	assert.Equal(t, []string{"q", "page", "term", "sort", "password", "color"}, res.ParamNames())
	assert.Equal(t, "from GET form", detailOf(t, res.Findings, "PARAM:term"))
	assert.True(t, res.Params[2].FromForm)
}

func TestCrawl_ParamCap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, `<a href="/p?n%d=1">x</a>`, i)
	}
	site := &fakeSite{base: "http://site.test", pages: map[string]page{"/": {body: b.String()}}}

	res, err := New(site, Config{MaxDepth: 1, MaxPages: 10, MaxParams: 5}).Crawl(context.Background(), "http://site.test/")
	require.NoError(t, err)
	assert.Len(t, res.Params, 5)
}

func TestCrawl_NonHTMLNotExpanded(t *testing.T) {
	site := &fakeSite{base: "http://site.test", pages: map[string]page{
		"/": {contentType: "application/json", body: `{"href":"/a"} href="/a"`},
	}}
	_, err := New(site, Config{MaxDepth: 2, MaxPages: 10}).Crawl(context.Background(), "http://site.test/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, site.fetched)
}

func TestCrawl_FetchErrorContinues(t *testing.T) {
	site := &fakeSite{base: "http://site.test", pages: map[string]page{
		"/":       {body: `<a href="/broken">b</a><a href="/fine">f</a>`},
		"/broken": {err: &scanclient.RequestError{Method: "GET", URL: "http://site.test/broken", Err: errors.New("connection reset")}},
		"/fine":   {body: ``},
	}}

	res, err := New(site, Config{MaxDepth: 1, MaxPages: 10}).Crawl(context.Background(), "http://site.test/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/broken", "/fine"}, site.fetched)
	assert.Contains(t, detailOf(t, res.Findings, TitleFetchError), "/broken")
	assert.Equal(t, "2", detailOf(t, res.Findings, TitlePages))
}

func TestCrawl_BudgetAbortKeepsPartialResult(t *testing.T) {
	site := &fakeSite{base: "http://site.test", pages: map[string]page{
		"/":  {body: `<a href="/a?k=1">a</a><a href="/b">b</a>`},
		"/a": {err: fmt.Errorf("get: %w", budget.ErrExhausted)},
	}}

	res, err := New(site, Config{MaxDepth: 1, MaxPages: 10}).Crawl(context.Background(), "http://site.test/")
	require.ErrorIs(t, err, budget.ErrExhausted)
	require.NotNil(t, res)
	assert.Equal(t, []string{"/", "/a"}, site.fetched, "crawl stops at the exhausted fetch")
	assert.Equal(t, []string{"k"}, res.ParamNames())
	assert.Equal(t, "1", detailOf(t, res.Findings, TitlePages))
}

func TestCrawl_InvalidTarget(t *testing.T) {
	_, err := New(&fakeSite{}, Config{}).Crawl(context.Background(), "ftp://site.test/")
	assert.ErrorIs(t, err, scanclient.ErrInvalidTarget)
}

func TestParamsFromFindings(t *testing.T) {
	fs := []finding.Finding{
		finding.New(Module, finding.Info, "PARAM:id", "from link /"),
		finding.New(Module, finding.Info, TitlePage, "/ status=200"),
		finding.New("other", finding.Info, "PARAM:ignored", ""),
		finding.New(Module, finding.Info, "PARAM:q", "from GET form"),
		finding.New(Module, finding.Info, "PARAM:id", "dup"),
	}
	assert.Equal(t, []string{"id", "q"}, ParamsFromFindings(fs))
}
