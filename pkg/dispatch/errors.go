package dispatch

import (
	"errors"
	"fmt"
)

// ErrEmptyRegistry is returned when a dispatch finds no registered tokens.
var ErrEmptyRegistry = errors.New("No device tokens registered")

// ValidationError indicates malformed or missing caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// DeliveryError describes why one recipient could not be reached.
// Code is provider-defined and may be empty.
type DeliveryError struct {
	Message string
	Code    string
}

func (e *DeliveryError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// AsDeliveryError converts any per-item error into a *DeliveryError,
// keeping the code when the error already carries one.
func AsDeliveryError(err error) *DeliveryError {
	if err == nil {
		return nil
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}
	return &DeliveryError{Message: err.Error()}
}

// ProviderWideError means the provider rejected a whole operation, so no
// per-recipient outcomes could be produced.
type ProviderWideError struct {
	Provider string
	Message  string
	Code     string
	Details  string
	Err      error
}

func (e *ProviderWideError) Error() string {
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

func (e *ProviderWideError) Unwrap() error {
	return e.Err
}
