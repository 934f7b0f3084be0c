package httpclient

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_Distinct(t *testing.T) {
	sentinels := []error{ErrTimeout, ErrDNS, ErrTLS, ErrConnection, ErrProxy}
	for i := range sentinels {
		for j := i + 1; j < len(sentinels); j++ {
			assert.False(t, errors.Is(sentinels[i], sentinels[j]), "%v vs %v", sentinels[i], sentinels[j])
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), ErrTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, ErrTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "nx.invalid", IsNotFound: true}, ErrDNS},
		{"dns timeout", &net.DNSError{Err: "timeout", Name: "slow.invalid", IsTimeout: true}, ErrTimeout},
		{"unknown authority", fmt.Errorf("tls: %w", x509.UnknownAuthorityError{}), ErrTLS},
		{"refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, ErrConnection},
		{"other", errors.New("boom"), ErrConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassify_RealFailures(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		c, err := New(Config{Timeout: 2 * time.Second})
		require.NoError(t, err)
		_, err = c.Get(addr)
		require.Error(t, err)
		assert.Equal(t, ErrConnection, Classify(err))
	})

	t.Run("timeout", func(t *testing.T) {
		block := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-block
		}))
		defer srv.Close()
		defer close(block)

		c, err := New(Config{Timeout: 50 * time.Millisecond})
		require.NoError(t, err)
		_, err = c.Get(srv.URL)
		require.Error(t, err)
		assert.Equal(t, ErrTimeout, Classify(err))
	})

	t.Run("untrusted certificate", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.NotFoundHandler())
		defer srv.Close()

		c, err := New(Config{Timeout: 2 * time.Second})
		require.NoError(t, err)
		_, err = c.Get(srv.URL)
		require.Error(t, err)
		assert.Equal(t, ErrTLS, Classify(err))
	})
}
