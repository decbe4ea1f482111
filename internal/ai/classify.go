package ai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// FailureKind buckets model call errors for user-facing diagnostics.
type FailureKind string

const (
	FailureNotConfigured FailureKind = "not_configured"
	FailureAuth          FailureKind = "auth"
	FailureTimeout       FailureKind = "timeout"
	FailureNetwork       FailureKind = "network"
	FailureProvider      FailureKind = "provider"
)

// Classify maps err to a FailureKind. A nil error classifies as provider.
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrDisabled):
		return FailureNotConfigured
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	}

	var gerr genai.APIError
	if errors.As(err, &gerr) {
		return statusKind(gerr.Code)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusKind(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusKind(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return FailureNetwork
	}
	return FailureProvider
}

func statusKind(code int) FailureKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureAuth
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return FailureTimeout
	default:
		return FailureProvider
	}
}
