package httpstore

import (
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

var (
	// DefaultMaxConnsPerHost bounds the connection pool held open to a
	// single remote object-store host.
	DefaultMaxConnsPerHost = 1000
	// DefaultMaxIdleConnsPerHost bounds the keep-alive pool per host.
	DefaultMaxIdleConnsPerHost = 200
	// DefaultKeepAlive is the TCP keep-alive period for connections to the
	// remote store.
	DefaultKeepAlive = 60 * time.Second
	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 30 * time.Second
)

// NewHTTPTransport builds the transport used by Store, tuned for many
// concurrent range requests against one or a few hosts.
func NewHTTPTransport() *http.Transport {
	return &http.Transport{
		IdleConnTimeout:     time.Minute,
		MaxConnsPerHost:     DefaultMaxConnsPerHost,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		Proxy:               http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// NewHTTPClient returns a client safe for concurrent use by many goroutines.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: gzhttp.Transport(NewHTTPTransport()),
	}
}
