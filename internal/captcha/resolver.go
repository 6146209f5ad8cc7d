// File: internal/captcha/resolver.go
package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Resolver turns a captcha challenge image into its text. Implementations
// are treated as unreliable oracles: failures are expected and retried by
// the caller within a bounded budget.
type Resolver interface {
	Resolve(ctx context.Context, image []byte) (string, error)
}

// RecognitionError reports a failure of the recognition backend, either on
// transport or as a non-success response.
type RecognitionError struct {
	Msg string
	Err error
}

func (e *RecognitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("captcha recognition: %s: %v", e.Msg, e.Err)
	}
	return "captcha recognition: " + e.Msg
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// OCRResolver posts the challenge image to an HTTP OCR backend. The image is
// sent base64url-encoded without padding inside a small JSON envelope and
// the recognized text comes back in the "data" field.
type OCRResolver struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// NewOCRResolver builds a resolver for the given backend endpoint. A nil
// client falls back to a plain http.Client with a sane timeout.
func NewOCRResolver(endpoint string, client *http.Client, log *zap.Logger) *OCRResolver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OCRResolver{endpoint: endpoint, client: client, log: log}
}

type ocrRequest struct {
	Base64Str string `json:"base64_str"`
}

type ocrResponse struct {
	Data string `json:"data"`
}

// Resolve implements Resolver.
func (r *OCRResolver) Resolve(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", &RecognitionError{Msg: "empty challenge image"}
	}

	payload, err := json.Marshal(ocrRequest{
		Base64Str: base64.RawURLEncoding.EncodeToString(image),
	})
	if err != nil {
		return "", &RecognitionError{Msg: "encoding request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &RecognitionError{Msg: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &RecognitionError{Msg: "posting challenge", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", &RecognitionError{Msg: "reading response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.log.Debug("OCR backend rejected challenge",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return "", &RecognitionError{Msg: fmt.Sprintf("backend status %d", resp.StatusCode)}
	}

	var decoded ocrResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", &RecognitionError{Msg: "decoding response", Err: err}
	}
	if decoded.Data == "" {
		return "", &RecognitionError{Msg: "backend returned no text"}
	}

	r.log.Info("Security code recognized", zap.String("code", decoded.Data))
	return decoded.Data, nil
}
