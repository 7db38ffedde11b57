package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/travel-identity-client/interfaces"
)

var (
	// ErrProviderUnavailable is returned by Connect when no wallet provider is configured.
	ErrProviderUnavailable = errors.New("no wallet provider available")

	// ErrConnectionFailed is returned when the wallet refuses or fails to authorize an account.
	ErrConnectionFailed = errors.New("wallet connection failed")

	// ErrConnectionLost is returned for operations attempted without a bound contract handle.
	ErrConnectionLost = errors.New("session is not connected")

	// ErrValidationFailed is wrapped by ValidationError.
	ErrValidationFailed = errors.New("registration input is invalid")

	// ErrTransactionRejected is returned when the wallet owner declines to sign.
	ErrTransactionRejected = errors.New("transaction rejected by wallet")

	// ErrTransactionReverted is returned when the contract rejects the registration.
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrTransactionTimeout is returned when the registration was submitted but not
	// confirmed within the confirmation timeout.
	ErrTransactionTimeout = errors.New("transaction confirmation timed out")

	// ErrSubmissionFailed is returned when the transaction could not be submitted.
	ErrSubmissionFailed = errors.New("transaction submission failed")

	// ErrFetchFailed is returned when a user record cannot be read.
	ErrFetchFailed = errors.New("failed to fetch user")

	// ErrUserNotFound is wrapped by ErrFetchFailed when the address holds no record.
	ErrUserNotFound = errors.New("user not registered")

	// ErrInvalidAddress is wrapped by ErrFetchFailed when the address is not 20 hex bytes.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrRequestInFlight is returned when a registration is already awaiting confirmation.
	ErrRequestInFlight = errors.New("registration already in progress")
)

// ValidationError carries per-field messages for invalid registration input.
type ValidationError struct {
	Fields interfaces.ValidationErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %v", ErrValidationFailed, e.Fields)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// FieldErrors returns the per-field messages of a validation failure, or nil.
func FieldErrors(err error) interfaces.ValidationErrors {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

func wrap(category error, err error) error {
	return fmt.Errorf("%w: %v", category, err)
}

// classifySubmission maps a RegisterUser failure onto the error taxonomy.
func classifySubmission(err error, rejected func(error) bool) error {
	msg := strings.ToLower(err.Error())
	switch {
	case rejected(err):
		return wrap(ErrTransactionRejected, err)
	case strings.Contains(msg, "user denied"), strings.Contains(msg, "user rejected"), strings.Contains(msg, "request denied"):
		return wrap(ErrTransactionRejected, err)
	case strings.Contains(msg, "execution reverted"):
		return wrap(ErrTransactionReverted, err)
	default:
		return wrap(ErrSubmissionFailed, err)
	}
}
