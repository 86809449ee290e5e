package common

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Stage code decides what happens next:
//
//   - ErrUnreadableDocument: structurally bad input; reported and skipped.
//   - ErrExtractionParse: extractor output failed schema validation after
//     the single re-prompt; reported and skipped.
//   - ErrDuplicateKey: expected signal from the store; routes to the merge
//     path, never treated as a failure.
//   - transient provider errors: retried with backoff, bounded attempts.
//   - permanent provider errors: reported immediately, never retried.
var (
	ErrUnreadableDocument = errors.New("document yielded no usable text")
	ErrExtractionParse    = errors.New("extractor output did not match schema")
	ErrDuplicateKey       = errors.New("fingerprint already exists")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
)

// ProviderError wraps a failure from an external collaborator (OCR binary,
// language service, enrichment, DNC registry, transport).
type ProviderError struct {
	Provider  string
	Transient bool
	Cause     error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s: %s provider error: %v", e.Provider, kind, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewTransientError marks an error as retryable (network, timeout, rate limit).
func NewTransientError(provider string, cause error) error {
	return &ProviderError{Provider: provider, Transient: true, Cause: cause}
}

// NewPermanentError marks an error as non-retryable (auth, validation).
func NewPermanentError(provider string, cause error) error {
	return &ProviderError{Provider: provider, Transient: false, Cause: cause}
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
