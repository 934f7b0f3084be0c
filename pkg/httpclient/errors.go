package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
)

// Sentinel errors for transport failure modes. Classify maps a raw
// transport error onto one of them.
var (
	ErrTimeout    = errors.New("httpclient: request timed out")
	ErrDNS        = errors.New("httpclient: DNS resolution failed")
	ErrTLS        = errors.New("httpclient: TLS handshake failed")
	ErrConnection = errors.New("httpclient: connection failed")
	ErrProxy      = errors.New("httpclient: invalid proxy")
)

// Classify returns the sentinel describing err, or nil for nil. Anything
// not recognised as a timeout, DNS or TLS failure is ErrConnection.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ErrTimeout
		}
		return ErrDNS
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	var (
		certErr     *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &certErr),
		errors.As(err, &recordErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidCert):
		return ErrTLS
	}

	return ErrConnection
}
