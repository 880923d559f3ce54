package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	ErrValidation    = errors.New("validation failed")
	ErrConfiguration = errors.New("configuration error")
	ErrTransport     = errors.New("transport error")
	ErrProvider      = errors.New("payment provider error")

	// ErrAlreadyCompleted is returned when a cart has already been turned into an order
	// by this session. No further cart or payment calls may be issued for it.
	ErrAlreadyCompleted = errors.New("cart already completed")
	// ErrCheckoutInFlight is returned while a completion for the same cart is still running.
	ErrCheckoutInFlight = errors.New("checkout already in progress")
)

// Error carries a user-facing message together with the taxonomy kind it belongs to.
type Error struct {
	Kind        error
	Message     string
	Remediation string
	Fields      []string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func NewValidationError(message string, fields ...string) *Error {
	return &Error{Kind: ErrValidation, Message: message, Fields: fields}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func NewConfigurationError(message, remediation string) *Error {
	return &Error{Kind: ErrConfiguration, Message: message, Remediation: remediation}
}

func NewTransportError(message string, err error) *Error {
	return &Error{Kind: ErrTransport, Message: message, Err: err}
}

func NewProviderError(message string) *Error {
	return &Error{Kind: ErrProvider, Message: message}
}

// Kind reports which taxonomy sentinel err belongs to, or nil when it is unclassified.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConfiguration, ErrProvider, ErrAlreadyCompleted, ErrCheckoutInFlight, ErrTransport} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName is the short label used in API responses and metrics.
func KindName(err error) string {
	switch Kind(err) {
	case ErrValidation:
		return "validation"
	case ErrNotFound:
		return "not_found"
	case ErrConfiguration:
		return "configuration"
	case ErrProvider:
		return "provider"
	case ErrAlreadyCompleted:
		return "already_completed"
	case ErrCheckoutInFlight:
		return "in_flight"
	case ErrTransport:
		return "transport"
	default:
		return "internal"
	}
}

// Message returns the user-facing part of err.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) && strings.TrimSpace(de.Message) != "" {
		return de.Message
	}
	return err.Error()
}
