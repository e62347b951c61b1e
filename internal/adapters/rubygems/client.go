package rubygems

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.trai.ch/bundle/internal/build"
)

const httpClientTimeout = 30 * time.Second

// DefaultRetryDelay is the backoff before the first retry. It doubles after
// each failed attempt.
const DefaultRetryDelay = 500 * time.Millisecond

var (
	// errNotFound marks a 404 response.
	errNotFound = errors.New("not found")
	// errNetwork marks a transport failure or an unexpected status.
	errNetwork = errors.New("network error")
)

// retryableError marks a failure worth another attempt: transport errors and
// 5xx responses.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// retry runs fn up to attempts times, doubling delay after each retryable
// failure. Other errors are returned immediately.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.As(err, new(*retryableError)) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// client performs GET requests against one remote.
type client struct {
	http     *http.Client
	base     string
	attempts int
	delay    time.Duration
}

// get fetches path and returns the whole body. A 404 yields errNotFound.
func (c *client) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	err := retry(ctx, c.attempts, c.delay, func() error {
		data, err := c.do(ctx, path)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	return body, err
}

func (c *client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "bundle/"+build.Version)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err: fmt.Errorf("%w: %w", errNetwork, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("%w: %w", errNetwork, err)}
	}
	return data, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errNotFound
	case code >= http.StatusInternalServerError:
		return &retryableError{err: fmt.Errorf("%w: status %d", errNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", errNetwork, code)
	}
}
