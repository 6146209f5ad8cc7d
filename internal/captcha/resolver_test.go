// File: internal/captcha/resolver_test.go
package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOCRResolverResolve(t *testing.T) {
	t.Parallel()

	image := []byte{0x89, 'P', 'N', 'G', 0xff, 0xfe}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Base64Str string `json:"base64_str"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// The payload must be base64url without padding.
		assert.NotContains(t, req.Base64Str, "=")
		assert.NotContains(t, req.Base64Str, "+")
		assert.NotContains(t, req.Base64Str, "/")
		decoded, err := base64.RawURLEncoding.DecodeString(req.Base64Str)
		require.NoError(t, err)
		assert.Equal(t, image, decoded)

		_, _ = w.Write([]byte(`{"data":"H7K2"}`))
	}))
	defer srv.Close()

	resolver := NewOCRResolver(srv.URL, srv.Client(), nil)
	text, err := resolver.Resolve(context.Background(), image)
	require.NoError(t, err)
	assert.Equal(t, "H7K2", text)
}

func TestOCRResolverFailures(t *testing.T) {
	t.Parallel()

	t.Run("backend error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model offline", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		resolver := NewOCRResolver(srv.URL, srv.Client(), nil)
		_, err := resolver.Resolve(context.Background(), []byte("img"))
		var rerr *RecognitionError
		require.ErrorAs(t, err, &rerr)
		assert.Contains(t, rerr.Error(), "503")
	})

	t.Run("empty recognized text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":""}`))
		}))
		defer srv.Close()

		resolver := NewOCRResolver(srv.URL, srv.Client(), nil)
		_, err := resolver.Resolve(context.Background(), []byte("img"))
		var rerr *RecognitionError
		assert.ErrorAs(t, err, &rerr)
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connection refused from here on

		resolver := NewOCRResolver(srv.URL, nil, nil)
		_, err := resolver.Resolve(context.Background(), []byte("img"))
		var rerr *RecognitionError
		assert.ErrorAs(t, err, &rerr)
	})

	t.Run("empty image short-circuits", func(t *testing.T) {
		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		resolver := NewOCRResolver(srv.URL, srv.Client(), nil)
		_, err := resolver.Resolve(context.Background(), nil)
		assert.Error(t, err)
		assert.False(t, called)
	})

	t.Run("malformed response body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("{", 3)))
		}))
		defer srv.Close()

		resolver := NewOCRResolver(srv.URL, srv.Client(), nil)
		_, err := resolver.Resolve(context.Background(), []byte("img"))
		assert.Error(t, err)
	})
}
