// Package web talks to the OpenWeatherMap and NewsAPI HTTP services and
// builds search URLs for the browser.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

var (
	// ErrNotConfigured means the service has no API key.
	ErrNotConfigured = errors.New("service not configured")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("service timed out")
	ErrUnavailable   = errors.New("service unavailable")
)

// getJSON performs a GET and decodes a 200 response into v. Non-200 yields
// ErrNotFound wrapped with the status; timeouts yield ErrTimeout.
func getJSON(ctx context.Context, client *http.Client, endpoint string, q url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
