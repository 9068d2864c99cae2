package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindUnknown         Kind = "unknown"
	KindRateLimited     Kind = "rate_limited"
	KindTimeout         Kind = "timeout"
	KindCanceled        Kind = "canceled"
	KindUnauthorized    Kind = "unauthorized"
	KindContentFiltered Kind = "content_filtered"
	KindUnavailable     Kind = "unavailable"
	KindEmptyResponse   Kind = "empty_response"
)

// Error is a classified provider failure.
type Error struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the same call may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindUnavailable, KindTimeout, KindEmptyResponse:
		return true
	}
	return false
}

// Classify maps err to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Status+" "+apiErr.Message)
	}
	return KindUnknown
}

func classifyStatus(code int, text string) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnauthorized
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(text), "safety"):
		return KindContentFiltered
	case code >= 500:
		return KindUnavailable
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	switch Classify(err) {
	case KindRateLimited, KindUnavailable, KindTimeout, KindUnknown:
		return true
	}
	return false
}

func wrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return err
	}
	return &Error{Provider: provider, Kind: Classify(err), Err: err}
}
