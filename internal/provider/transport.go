package provider

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

var (
	sharedTransportOnce sync.Once
	sharedTransport     *http.Transport
)

// SharedTransport returns the process-wide pooled transport used by every
// adapter, so connections to each upstream host are reused across calls.
func SharedTransport() *http.Transport {
	sharedTransportOnce.Do(func() {
		t := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          64,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		// Falls back to HTTP/1.1 if the transport cannot be upgraded.
		_ = http2.ConfigureTransport(t)
		sharedTransport = t
	})
	return sharedTransport
}

// NewHTTPClient returns a client with the given per-call timeout on top of
// the shared transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: SharedTransport(),
		Timeout:   timeout,
	}
}
