package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// APIError represents a non-2xx response from the backend API.
// Details carries the decoded error payload when one was available.
type APIError struct {
	Status  int
	Message string
	Details any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// NewAPIError constructs an APIError without a payload.
func NewAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

// IsAuthError reports whether err is an APIError carrying a 401 or 403
// status. Callers treat this as an expired or invalid session.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == 401 || apiErr.Status == 403
}

// IsNetworkError reports whether err is a transport-level failure (backend
// unreachable) rather than an HTTP error response.
func IsNetworkError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	// Cancelled and timed-out requests also surface as *url.Error; those are
	// caller-initiated, not a failure to reach the backend.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// messageFromPayload extracts a human-readable error message from a decoded
// error payload. Known object fields are tried in priority order, then the
// first entry of a validation-errors array, then the fallback.
func messageFromPayload(payload any, fallback string) string {
	switch v := payload.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case map[string]any:
		for _, field := range []string{"message", "error", "detail", "title"} {
			if s := stringField(v, field); s != "" {
				return s
			}
		}
		if s := validationMessage(v); s != "" {
			return s
		}
	}
	return fallback
}

func stringField(record map[string]any, key string) string {
	s, ok := record[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func validationMessage(record map[string]any) string {
	items, ok := record["errors"].([]any)
	if !ok || len(items) == 0 {
		return ""
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return ""
	}
	if s := stringField(first, "defaultMessage"); s != "" {
		return s
	}
	return stringField(first, "message")
}
