package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const userAgent = "party-beacon-notify/1"

// StatusError is a non-2xx answer from a target.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push failed with status %d", e.Code)
}

// Retryable reports whether err may succeed on a later attempt. Client
// errors other than 408 and 429 are permanent.
func Retryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	switch {
	case se.Code == http.StatusRequestTimeout, se.Code == http.StatusTooManyRequests:
		return true
	case se.Code >= 400 && se.Code < 500:
		return false
	default:
		return true
	}
}

type HTTPClient struct {
	inner *http.Client
}

func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{inner: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) PostJSON(ctx context.Context, endpoint string, headers map[string]string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.PostRaw(ctx, endpoint, headers, raw)
}

func (c *HTTPClient) PostRaw(ctx context.Context, endpoint string, headers map[string]string, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
