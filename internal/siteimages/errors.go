package siteimages

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the API has no image for a section key.
	ErrNotFound = errors.New("siteimages: image not found")
	// ErrMalformedResponse is returned when a response body cannot be decoded or fails validation.
	ErrMalformedResponse = errors.New("siteimages: malformed response")
	// ErrEmptyKey is returned when an operation is called without a section key.
	ErrEmptyKey = errors.New("siteimages: missing section key")
)

// NetworkError wraps a transport failure (DNS, timeout, connection reset).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("siteimages: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a non-2xx response on a mutation. Message carries the backend's
// structured error text when it sent one.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("siteimages: %s: %s", e.Op, e.Message)
}

// ErrorKind buckets errors into the categories callers present differently.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindNetwork
	KindValidation
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Kind classifies err.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var netErr *NetworkError
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	case errors.As(err, &apiErr):
		return KindValidation
	case errors.As(err, &netErr):
		return KindNetwork
	default:
		return KindUnknown
	}
}

const genericMessage = "Failed to load image"

// UserMessage maps a read-path error to the text shown next to a placeholder.
// Malformed payloads are reported like network failures.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch Kind(err) {
	case KindNotFound:
		return "Image not found"
	case KindValidation:
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}
		return genericMessage
	default:
		return genericMessage
	}
}
