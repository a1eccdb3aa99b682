package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a failed call to an upstream service
type NetworkError struct {
	Op        string // Operation that failed (e.g., "quote", "predict", "dial")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// RejectionError is a domain refusal (insufficient funds or shares, nothing to trade).
// It is reported to the caller as a failed result, never retried.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "rejected: " + e.Reason
}

// IsRejection reports whether err is a domain rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

var (
	// ErrDataUnavailable is returned when the quote upstream is unreachable or returns no usable price.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrEmptyPrediction is returned when the prediction service answers without an action.
	ErrEmptyPrediction = errors.New("empty prediction response")

	// ErrUnknownUser is returned when a cycle is requested for a user without an account.
	ErrUnknownUser = errors.New("unknown user")

	// ErrInvariantViolation is returned when an account or position would end up in an invalid state.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
