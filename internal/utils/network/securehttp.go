package network

import (
	"crypto/tls"
	"net/http"
	"time"
)

// UserAgent identifies this tool to the registry, as required by the
// crates.io crawler policy (https://crates.io/data-access).
const UserAgent = "depowners (https://github.com/secure-deps/depowners)"

// NewSecureHTTPClient returns an http.Client with a custom TLS configuration.
// Callers can reuse this instead of re-defining the TLS settings everywhere.
// The timeout bounds a single request; retry budgets are counted separately
// by the caller.
func NewSecureHTTPClient(timeout time.Duration) *http.Client {

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,
	}

	transport := &http.Transport{
		TLSClientConfig:   tlsConfig,
		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: &userAgentTransport{next: transport},
		Timeout:   timeout,
	}
}

// userAgentTransport stamps every outgoing request with our User-Agent.
type userAgentTransport struct {
	next http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	return t.next.RoundTrip(req)
}
