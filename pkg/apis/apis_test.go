package apis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulnscan/vulnscan/pkg/budget"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

func TestEndpoints(t *testing.T) {
	eps := Endpoints([]string{"/rest/products", "/rest/track-order/", "/api/other", "/rest/track-order/"})
	assert.Len(t, eps, len(CommonEndpoints)+1)
	assert.Equal(t, "/rest/track-order/", eps[len(eps)-1])

	var many []string
	for i := 0; i < 300; i++ {
		many = append(many, fmt.Sprintf("/rest/r%d", i))
	}
	assert.Len(t, Endpoints(many), maxEndpoints)
}

func TestSensitive(t *testing.T) {
	assert.Equal(t, []string{"token", "auth", "role"}, Sensitive([]string{"id", "accessToken", "authToken", "userRole"}))
	assert.Empty(t, Sensitive([]string{"id", "name"}))
}

func TestRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/user/whoami", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprint(w, `{"user":{"id":1},"authentication":{"token":"x"}}`)
	})
	mux.HandleFunc("/rest/user/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"password":"hash","email":"a@b.test"}`)
	})
	mux.HandleFunc("/rest/products", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":1}]`)
	})
	mux.HandleFunc("/rest/track-order/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<p>tracking</p>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := scanclient.New(scanclient.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	fs, err := NewTester(c, Config{Extra: []string{"/rest/track-order/"}}).Run(context.Background())
	require.NoError(t, err)

	byTitle := make(map[string]finding.Finding)
	for _, f := range fs {
		byTitle[f.Title] = f
	}

	products := byTitle["API /rest/products -> 200"]
	assert.Equal(t, finding.Low, products.Severity)
	assert.Equal(t, "application/json", products.Detail)

	login := byTitle["API /rest/user/login -> 200"]
	assert.Equal(t, finding.Medium, login.Severity)
	assert.Equal(t, "application/json keys=password,email sens=password", login.Detail)

	whoami := byTitle["API /rest/user/whoami -> 200"]
	assert.Equal(t, finding.Low, whoami.Severity)
	assert.Equal(t, "application/json; charset=utf-8 keys=user,authentication sens=auth", whoami.Detail)
	assert.Equal(t, "auth", byTitle["Sensitive fields /rest/user/whoami"].Detail)

	assert.Equal(t, finding.Info, byTitle["API /rest/reviews -> 404"].Severity)
	assert.Equal(t, finding.Info, byTitle["API /rest/track-order/ -> 200"].Severity)

	assert.Len(t, fs, len(CommonEndpoints)+1+2)
}

func TestRun_BudgetStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := scanclient.New(scanclient.Config{BaseURL: srv.URL, MaxRequests: 3})
	require.NoError(t, err)
	fs, err := NewTester(c, Config{}).Run(context.Background())
	assert.ErrorIs(t, err, budget.ErrExhausted)
	assert.Len(t, fs, 3)
}
