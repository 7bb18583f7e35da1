// Package utils provides common utility functions.
package utils

import "net/http"

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "webhookworker/1.0"

// HTTPHelper provides HTTP utility functions.
type HTTPHelper struct{}

// NewHTTPHelper creates a new HTTP helper.
func NewHTTPHelper() *HTTPHelper {
	return &HTTPHelper{}
}

// BuildHeaders creates JSON request headers with defaults.
func (h *HTTPHelper) BuildHeaders(userAgent string, customHeaders map[string]string) http.Header {
	headers := http.Header{}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	// Add default headers
	headers.Set("User-Agent", userAgent)
	headers.Set("Accept", "application/json")

	// Add custom headers
	for key, value := range customHeaders {
		headers.Set(key, value)
	}

	return headers
}
