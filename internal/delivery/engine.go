// Package delivery implements the per-attempt HTTP delivery and outcome
// classification step of the pipeline. It has no knowledge of polling,
// claim batches or persistence — the worker package drives it and
// applies its Outcome to the store.
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/webhookrelay/delivery/internal/model"
	"github.com/webhookrelay/delivery/internal/signing"
)

const errorBodyPreviewBytes = 200

// retryableStatusCodes are the peer status codes that still get another
// attempt; everything else in 3xx/4xx/5xx is terminal (§4.4's table).
var retryableStatusCodes = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooManyRequests:    true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// Outcome is the classified result of one delivery attempt.
type Outcome struct {
	Status       model.Status
	StatusCode   *int
	ErrorDetails string
}

func (o Outcome) Retryable() bool {
	return o.Status == model.StatusFailedAttempt
}

// Engine performs one HTTP POST per call to Deliver and classifies the
// result. It is safe for concurrent use: http.Client is itself
// goroutine-safe and Engine holds no other mutable state.
type Engine struct {
	Client  *http.Client
	Timeout time.Duration
}

func New(timeout time.Duration) *Engine {
	return &Engine{
		Client:  &http.Client{},
		Timeout: timeout,
	}
}

// Request is everything a delivery attempt needs to know about its
// target, independent of how the caller obtained it (claim batch, retry
// drive, manual redelivery).
type Request struct {
	TargetURL string
	SecretKey string
	EventType string
	Body      []byte
}

// Deliver sends one POST to req.TargetURL carrying req.Body verbatim and
// classifies the result per §4.4's table. Every failure, including a
// request that cannot be built from req.TargetURL, is reported through
// the returned Outcome; the error result is always nil.
func (e *Engine) Deliver(ctx context.Context, req Request) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.TargetURL, bytes.NewReader(req.Body))
	if err != nil {
		// An unbuildable request (malformed target URL) has no peer
		// response to classify against; §4.4 treats this as the
		// "unknown runtime error" row, which is retryable.
		return Outcome{
			Status:       model.StatusFailedAttempt,
			ErrorDetails: fmt.Sprintf("Unexpected error: %s", err.Error()),
		}, nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.SecretKey != "" {
		httpReq.Header.Set("X-Hub-Signature-256", signing.Header([]byte(req.SecretKey), req.Body))
	}
	if req.EventType != "" {
		httpReq.Header.Set("X-Webhook-Event", req.EventType)
	}

	resp, err := e.Client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Outcome{
				Status:       model.StatusFailedAttempt,
				ErrorDetails: fmt.Sprintf("Request timed out after %g seconds", e.Timeout.Seconds()),
			}, nil
		}
		return Outcome{
			Status:       model.StatusFailedAttempt,
			ErrorDetails: fmt.Sprintf("Connection error: %s", err.Error()),
		}, nil
	}
	defer resp.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreviewBytes))
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return Outcome{Status: model.StatusSuccess, StatusCode: &code}, nil
	case retryableStatusCodes[code]:
		return Outcome{
			Status:       model.StatusFailedAttempt,
			StatusCode:   &code,
			ErrorDetails: fmt.Sprintf("Target server responded with status %d: %s", code, truncate(preview, errorBodyPreviewBytes)),
		}, nil
	default:
		return Outcome{
			Status:       model.StatusFailure,
			StatusCode:   &code,
			ErrorDetails: fmt.Sprintf("Target server responded with status %d: %s", code, truncate(preview, errorBodyPreviewBytes)),
		}, nil
	}
}

// sanitize strips control characters and normalizes a peer's response body
// before it is ever stored in error_details: the bytes come from an
// untrusted remote server and may carry ANSI escapes or other garbage that
// has no business sitting in a log line or an API response.
func sanitize(b []byte) []byte {
	t := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.C)))
	out, _, err := transform.Bytes(t, b)
	if err != nil {
		return b
	}
	return out
}

func truncate(b []byte, n int) string {
	b = sanitize(b)
	if !utf8.Valid(b) {
		b = bytes.ToValidUTF8(b, nil)
	}
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
