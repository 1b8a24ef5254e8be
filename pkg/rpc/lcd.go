package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// HTTPClient is used for every LCD request. Tests may swap it.
	HTTPClient = &http.Client{Timeout: 15 * time.Second}

	// ErrNoEndpoints is returned when a chain has no URL for the requested API.
	ErrNoEndpoints = errors.New("no endpoints configured")

	// ErrTxFailed wraps a broadcast that was accepted by the node but returned a non-zero code.
	ErrTxFailed = errors.New("transaction failed")
)

// APIError is a non-2xx LCD response.
type APIError struct {
	URL        string
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d", e.URL, e.StatusCode)
}

// IsNotFound reports whether err is an LCD 404, e.g. an account that has never
// received funds.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// final reports whether retrying the same request on another endpoint is
// pointless: the node answered and rejected it.
func final(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// withEndpoints calls fn with each base URL in turn until one succeeds. It
// returns the URLs that failed along the way.
func withEndpoints(ctx context.Context, urls []string, fn func(base string) error) ([]string, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	var failed []string
	var lastErr error
	for _, u := range urls {
		err := fn(strings.TrimRight(u, "/"))
		if err == nil {
			return failed, nil
		}
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		if final(err) {
			return failed, err
		}
		failed = append(failed, u)
		lastErr = err
	}
	return failed, lastErr
}

func getJSON(ctx context.Context, base, path string, query url.Values, out interface{}) error {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return doJSON(req, out)
}

func postJSON(ctx context.Context, base, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return doJSON(req, out)
}

func doJSON(req *http.Request, out interface{}) error {
	resp, err := HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{URL: req.URL.String(), StatusCode: resp.StatusCode}
		var e struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &e) == nil {
			apiErr.Code = e.Code
			apiErr.Message = e.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
