package stats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

func TestSummary(t *testing.T) {
	assert.Equal(t, "200:1, 404:2, 503:1", Summary(map[int]int{503: 1, 200: 1, 404: 2}))
	assert.Equal(t, "", Summary(map[int]int{}))
}

func TestRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\n"))
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("home"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := scanclient.New(scanclient.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	fs, err := Run(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, fs, 5)
	assert.Equal(t, "/ -> 200", fs[0].Detail)
	assert.Equal(t, "robots.txt -> 200", fs[1].Detail)
	assert.Equal(t, "sitemap.xml -> 500", fs[2].Detail)
	assert.Equal(t, "Status summary", fs[3].Title)
	assert.Equal(t, "200:2, 500:1", fs[3].Detail)
	assert.Equal(t, finding.Low, fs[4].Severity)
	assert.Equal(t, "5xx responses observed", fs[4].Title)
}

func TestRun_AllHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := scanclient.New(scanclient.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	fs, err := Run(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, fs, 4)
	assert.Equal(t, "200:3", fs[3].Detail)
}

func TestRun_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := scanclient.New(scanclient.Config{BaseURL: base})
	require.NoError(t, err)
	fs, err := Run(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, fs, 3)
	for _, f := range fs {
		assert.Equal(t, "Request error", f.Title)
	}
}
