package payment

import (
	"errors"
	"fmt"
)

// ErrorKind is the provider-neutral class of a provider failure.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindDecline        ErrorKind = "decline"
	KindAuthentication ErrorKind = "authentication"
	KindNetwork        ErrorKind = "network"
	KindConflict       ErrorKind = "conflict"
	KindNoCharge       ErrorKind = "no_charge"
	KindNotFound       ErrorKind = "not_found"
	KindUnknown        ErrorKind = "unknown"
)

// ProviderError wraps a raw SDK error with its neutral kind.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s error (%s): %s", e.Provider, e.Kind, e.Code, e.Message)
	}

	return fmt.Sprintf("%s %s error: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first ProviderError in the chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}

	return KindUnknown
}
