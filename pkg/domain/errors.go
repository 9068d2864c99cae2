package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is the class of errors raised for missing or empty required input.
// It is always returned before any provider call and is never retried.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrProviderFailure tags a completion provider error, timeout or cancellation.
// It is recovered by the fallback classifier and never escapes classification.
var ErrProviderFailure = errors.New("completion provider failure")

// ErrParseFailure tags a provider response that is not a JSON object.
var ErrParseFailure = errors.New("unparsable classification response")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ArgumentKind distinguishes a missing input from an empty one.
type ArgumentKind int

const (
	// ArgumentMissing is a nil input.
	ArgumentMissing ArgumentKind = iota + 1
	// ArgumentEmpty is an empty or whitespace-only string.
	ArgumentEmpty
)

func (k ArgumentKind) String() string {
	switch k {
	case ArgumentMissing:
		return "missing"
	case ArgumentEmpty:
		return "empty"
	}
	return "invalid"
}

// ArgumentError describes which argument was invalid and how.
// errors.Is(err, ErrInvalidArgument) holds for every ArgumentError.
type ArgumentError struct {
	Name string
	Kind ArgumentKind
}

func (e *ArgumentError) Error() string {
	switch e.Kind {
	case ArgumentMissing:
		return fmt.Sprintf("invalid argument: %s is required", e.Name)
	case ArgumentEmpty:
		return fmt.Sprintf("invalid argument: %s must not be empty", e.Name)
	}
	return fmt.Sprintf("invalid argument: %s", e.Name)
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// MissingArgument builds the error for a nil input.
func MissingArgument(name string) error {
	return &ArgumentError{Name: name, Kind: ArgumentMissing}
}

// EmptyArgument builds the error for an empty input.
func EmptyArgument(name string) error {
	return &ArgumentError{Name: name, Kind: ArgumentEmpty}
}

// ArgumentKindOf extracts the ArgumentKind from err, or 0 if err is not an ArgumentError.
func ArgumentKindOf(err error) ArgumentKind {
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return argErr.Kind
	}
	return 0
}
