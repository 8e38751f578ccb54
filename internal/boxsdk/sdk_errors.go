package boxsdk

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL   = errors.New("sdk: server url missing")
	ErrFileNotFound  = errors.New("sdk: file not found")
	ErrQuotaExceeded = errors.New("sdk: storage quota exceeded")
	ErrUnauthorized  = errors.New("sdk: unauthorized")
)

// APIError carries the backend's error detail for non-2xx responses.
type APIError struct {
	Status int    `json:"-"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s", e.Status, e.Detail)
}

// handleAPIError converts a req response/error pair into a single error value.
// Callers that care about specific conditions match the sentinels with errors.Is.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("sdk: %s: %w", operation, requestErr)
	}

	if !resp.IsErrorState() {
		return nil
	}

	switch resp.GetStatusCode() {
	case 401:
		return fmt.Errorf("sdk: %s: %w", operation, ErrUnauthorized)
	case 404:
		return fmt.Errorf("sdk: %s: %w", operation, ErrFileNotFound)
	case 507:
		return fmt.Errorf("sdk: %s: %w", operation, ErrQuotaExceeded)
	}

	if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Detail != "" {
		apiErr.Status = resp.GetStatusCode()
		return fmt.Errorf("sdk: %s: %w", operation, apiErr)
	}

	return fmt.Errorf("sdk: %s: unexpected status %d: %s", operation, resp.GetStatusCode(), resp.String())
}

// IsConnectivityError reports whether err looks like the backend being
// unreachable (down, DNS failure, timeout) rather than an application error.
// The sync loop retries these on a shorter interval.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable")
}
