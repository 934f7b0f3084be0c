package reflection

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulnscan/vulnscan/pkg/budget"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

func newClient(t *testing.T, h http.HandlerFunc, maxRequests int) (*scanclient.Client, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := scanclient.New(scanclient.Config{BaseURL: srv.URL, MaxRequests: maxRequests})
	require.NoError(t, err)
	return c, srv.URL
}

func byTitle(fs []finding.Finding, title string) []finding.Finding {
	var out []finding.Finding
	for _, f := range fs {
		if f.Title == title {
			out = append(out, f)
		}
	}
	return out
}

func TestRun_ReflectedParameter(t *testing.T) {
	c, base := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<p>You searched for %s</p>", r.URL.Query().Get("q"))
	}, 0)

	fs, err := NewTester(c, Config{}).Run(context.Background(), base+"/search?q=shoes&page=1")
	require.NoError(t, err)

	refl := byTitle(fs, TitleReflected)
	require.Len(t, refl, 1)
	assert.Equal(t, finding.Low, refl[0].Severity)
	assert.True(t, strings.HasPrefix(refl[0].Detail, "q "))
	assert.Empty(t, byTitle(fs, TitleNone))
}

func TestRun_UnstableReflection(t *testing.T) {
	// Echoes only the first token, as a cache or fixed page would.
	c, base := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == firstToken {
			fmt.Fprint(w, firstToken)
		}
	}, 0)

	fs, err := NewTester(c, Config{}).Run(context.Background(), base+"/?id=5")
	require.NoError(t, err)
	require.Len(t, byTitle(fs, TitleUnstable), 1)
	none := byTitle(fs, TitleNone)
	require.Len(t, none, 1)
	assert.Equal(t, "params tested=1", none[0].Detail)
}

func TestRun_NoParameters(t *testing.T) {
	c, base := newClient(t, func(w http.ResponseWriter, r *http.Request) {}, 0)
	fs, err := NewTester(c, Config{}).Run(context.Background(), base+"/")
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, TitleNoParams, fs[0].Title)
	assert.Equal(t, int64(0), c.Requests())
}

func TestRun_ExtraParamsDefaulted(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	c, base := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.RawQuery)
		mu.Unlock()
	}, 0)

	_, err := NewTester(c, Config{ExtraParams: []string{"lang"}}).Run(context.Background(), base+"/")
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "lang="+firstToken, seen[0])
}

func TestRun_CapsParameters(t *testing.T) {
	var q strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&q, "p%d=1&", i)
	}
	c, base := newClient(t, func(w http.ResponseWriter, r *http.Request) {}, 0)

	fs, err := NewTester(c, Config{}).Run(context.Background(), base+"/?"+q.String())
	require.NoError(t, err)
	assert.Equal(t, int64(maxParams), c.Requests())
	assert.Equal(t, "params tested=20", byTitle(fs, TitleNone)[0].Detail)
}

func TestRun_BudgetExhaustionPropagates(t *testing.T) {
	c, base := newClient(t, func(w http.ResponseWriter, r *http.Request) {}, 1)

	fs, err := NewTester(c, Config{}).Run(context.Background(), base+"/?a=1&b=2")
	assert.ErrorIs(t, err, budget.ErrExhausted)
	assert.Empty(t, byTitle(fs, TitleNone))
}
