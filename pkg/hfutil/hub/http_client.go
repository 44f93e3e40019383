package hub

import (
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	defaultTransport http.RoundTripper
	transportOnce    sync.Once
)

// sharedTransport pools connections across every hub client in the process.
func sharedTransport() http.RoundTripper {
	transportOnce.Do(func() {
		defaultTransport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		}
	})
	return defaultTransport
}

// NewHTTPClientWithTimeout creates a client on the shared transport with a
// per-request timeout.
func NewHTTPClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: sharedTransport(),
		Timeout:   timeout,
	}
}
