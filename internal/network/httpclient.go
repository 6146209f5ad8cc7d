// File: internal/network/httpclient.go
package network

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// Defaults tuned for a polite, browser-like form session.
const (
	DefaultDialTimeout           = 15 * time.Second
	DefaultKeepAliveInterval     = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultRequestTimeout        = 200 * time.Second

	DefaultMaxIdleConns        = 10
	DefaultMaxIdleConnsPerHost = 4
	DefaultIdleConnTimeout     = 90 * time.Second
)

// ClientConfig holds the configuration for a cookie-bearing form session.
type ClientConfig struct {
	// RequestTimeout bounds each call end to end; exceeding it is a
	// retryable transport failure for the caller.
	RequestTimeout time.Duration

	// UserAgent plus the fixed Accept headers are stamped on every request
	// that does not carry its own.
	UserAgent string

	// ProxyURL routes the session through an HTTP(S) CONNECT proxy.
	ProxyURL *url.URL

	InsecureSkipVerify bool

	// CookieJar carries the server session cookie between steps. Each
	// booking attempt owns its jar; jars are never shared.
	CookieJar http.CookieJar
}

// NewSessionConfig creates a configuration for one booking session with a
// fresh in-memory cookie jar.
func NewSessionConfig() *ClientConfig {
	jar, _ := cookiejar.New(nil) // only errors on invalid options, we pass nil
	return &ClientConfig{
		RequestTimeout: DefaultRequestTimeout,
		CookieJar:      jar,
	}
}

// ParseProxyURL validates a proxy flag value, assuming an https scheme when
// none is given.
func ParseProxyURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	if !containsScheme(raw) {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed proxy address %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https":
		return u, nil
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q (only http/https)", u.Scheme)
	}
}

func containsScheme(raw string) bool {
	for i := 0; i+2 < len(raw); i++ {
		if raw[i] == ':' && raw[i+1] == '/' && raw[i+2] == '/' {
			return true
		}
	}
	return false
}

// NewClient creates the configured http.Client for a booking session. The
// transport handles its own decompression (gzip, deflate, brotli) and
// redirects are followed: the workflow derives step success from the final
// post-redirect URL.
func NewClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = NewSessionConfig()
	}
	if config.CookieJar == nil {
		jar, _ := cookiejar.New(nil)
		config.CookieJar = jar
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	dialer := &net.Dialer{
		Timeout:       DefaultDialTimeout,
		KeepAlive:     DefaultKeepAliveInterval,
		FallbackDelay: 300 * time.Millisecond,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		ForceAttemptHTTP2:     true,
		// The decompression middleware negotiates encodings itself.
		DisableCompression: true,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}
	if config.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(config.ProxyURL)
	}

	var rt http.RoundTripper = NewCompressionMiddleware(transport)
	rt = &headerMiddleware{next: rt, userAgent: config.UserAgent}

	return &http.Client{
		Transport: rt,
		Timeout:   config.RequestTimeout,
		Jar:       config.CookieJar,
	}
}

// headerMiddleware stamps the browser-like default headers the reservation
// site expects on every request.
type headerMiddleware struct {
	next      http.RoundTripper
	userAgent string
}

func (m *headerMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", m.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept",
			"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "zh-TW,zh;q=0.8,en-US;q=0.5,en;q=0.3")
	}
	return m.next.RoundTrip(req)
}
