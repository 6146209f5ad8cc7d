// File: internal/network/httpclient_test.go
package network

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientStampsSessionHeaders(t *testing.T) {
	t.Parallel()

	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	cfg := NewSessionConfig()
	cfg.UserAgent = "thsrbot-test-agent"
	client := NewClient(cfg)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "thsrbot-test-agent", got.Get("User-Agent"))
	assert.Contains(t, got.Get("Accept"), "text/html")
	assert.Contains(t, got.Get("Accept-Language"), "zh-TW")
	assert.Contains(t, got.Get("Accept-Encoding"), "br")
}

func TestNewClientKeepsCookiesAcrossRequests(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc123", Path: "/"})
		case "/next":
			c, err := r.Cookie("JSESSIONID")
			if err != nil || c.Value != "abc123" {
				w.WriteHeader(http.StatusForbidden)
			}
		}
	}))
	defer srv.Close()

	client := NewClient(NewSessionConfig())

	resp, err := client.Get(srv.URL + "/start")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/next")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestParseProxyURL(t *testing.T) {
	t.Parallel()

	t.Run("nil for empty", func(t *testing.T) {
		u, err := ParseProxyURL("")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("bare host gets https scheme", func(t *testing.T) {
		u, err := ParseProxyURL("proxy.example.com:8080")
		require.NoError(t, err)
		assert.Equal(t, "https", u.Scheme)
		assert.Equal(t, "proxy.example.com:8080", u.Host)
	})

	t.Run("explicit http accepted", func(t *testing.T) {
		u, err := ParseProxyURL("http://user:pw@127.0.0.1:3128")
		require.NoError(t, err)
		assert.Equal(t, "http", u.Scheme)
	})

	t.Run("socks rejected", func(t *testing.T) {
		_, err := ParseProxyURL("socks5://127.0.0.1:1080")
		assert.Error(t, err)
	})
}

func TestCompressionMiddlewareDecodesGzip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte("<html>訂位</html>"))
		_ = zw.Close()

		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	client := NewClient(NewSessionConfig())
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := new(bytes.Buffer)
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<html>訂位</html>", body.String())
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestCompressionMiddlewareDecodesBrotli(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte("brotli payload"))
		_ = bw.Close()

		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	client := NewClient(NewSessionConfig())
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := new(bytes.Buffer)
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "brotli payload", body.String())
}
