package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"github.com/soundprediction/go-evolsynth/pkg/types"
)

var (
	// ErrTimeout is returned when a single attempt exceeds its deadline.
	ErrTimeout = errors.New("generation call timed out")
	// ErrRateLimited is returned when the provider rejects a call with 429.
	ErrRateLimited = errors.New("generation service rate limited")
	// ErrServiceUnavailable covers 5xx responses and transport failures.
	ErrServiceUnavailable = errors.New("generation service unavailable")
	// ErrMalformedRequest is returned for 4xx responses other than 429.
	ErrMalformedRequest = errors.New("malformed generation request")
	// ErrMalformedResponse is returned when the provider answers without usable content.
	ErrMalformedResponse = errors.New("malformed generation response")
	// ErrCircuitOpen is returned while the circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("generation circuit open")
)

// ErrorKind separates failures worth retrying from those that are not.
type ErrorKind int

const (
	KindTransient ErrorKind = iota + 1
	KindPermanent
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return types.FailureTransient
	case KindPermanent:
		return types.FailurePermanent
	default:
		return "unknown"
	}
}

// GenerationError wraps a failed generation call with its classification.
type GenerationError struct {
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	Err        error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("%s generation failure", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	return msg + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err as retryable.
func NewTransientError(err error) error {
	return &GenerationError{Kind: KindTransient, Err: err}
}

// NewPermanentError marks err as not retryable.
func NewPermanentError(err error) error {
	return &GenerationError{Kind: KindPermanent, Err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind == KindTransient
	}
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrCircuitOpen)
}

// IsTimeout reports whether err came from an attempt deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// FailureKind maps err onto the failure kinds recorded in pipeline results.
func FailureKind(err error) string {
	if IsTransient(err) {
		return types.FailureTransient
	}
	return types.FailurePermanent
}

// classifyError converts a provider error into a GenerationError.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &GenerationError{Kind: KindTransient, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	}
	if errors.Is(err, context.Canceled) {
		return &GenerationError{Kind: KindPermanent, Err: err}
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &GenerationError{Kind: KindTransient, StatusCode: status, Err: fmt.Errorf("%w: %v", ErrRateLimited, err)}
	case status == http.StatusRequestTimeout:
		return &GenerationError{Kind: KindTransient, StatusCode: status, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	case status >= 500:
		return &GenerationError{Kind: KindTransient, StatusCode: status, Err: fmt.Errorf("%w: %v", ErrServiceUnavailable, err)}
	case status >= 400:
		return &GenerationError{Kind: KindPermanent, StatusCode: status, Err: fmt.Errorf("%w: %v", ErrMalformedRequest, err)}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &GenerationError{Kind: KindTransient, Err: fmt.Errorf("%w: %v", ErrServiceUnavailable, err)}
	}

	// Anything else from the transport is treated as a connectivity problem.
	return &GenerationError{Kind: KindTransient, Err: err}
}
