package goads

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twincatio/goads/internal/ads"
	"github.com/twincatio/goads/internal/transport"
)

// ErrorCategory classifies an error for logging, metrics, and retry decisions.
// It never changes the library's empty-return propagation policy — it is a
// diagnostic label layered on top of the normal Go error returned to callers.
type ErrorCategory int

const (
	ErrorCategoryUnknown ErrorCategory = iota
	ErrorCategoryNetwork
	ErrorCategoryProtocol
	ErrorCategoryADS
	ErrorCategoryValidation
	ErrorCategoryConfiguration
	ErrorCategoryTimeout
	ErrorCategoryState
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryNetwork:
		return "network"
	case ErrorCategoryProtocol:
		return "protocol"
	case ErrorCategoryADS:
		return "ads"
	case ErrorCategoryValidation:
		return "validation"
	case ErrorCategoryConfiguration:
		return "configuration"
	case ErrorCategoryTimeout:
		return "timeout"
	case ErrorCategoryState:
		return "state"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an error with classification metadata used for
// logging and metrics labelling.
type ClassifiedError struct {
	Category    ErrorCategory
	Operation   string
	Err         error
	Retryable   bool
	ADSError    *ads.Error
	SymbolName  string
	IndexGroup  *uint32
	IndexOffset *uint32
}

func (e *ClassifiedError) Error() string {
	if e.SymbolName != "" {
		return fmt.Sprintf("%s operation failed for symbol %q: %v", e.Operation, e.SymbolName, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %v", e.Operation, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

func (e *ClassifiedError) IsRetryable() bool {
	return e.Retryable
}

// ClassifyError buckets err into a category for diagnostics. It returns nil
// for a nil error.
func ClassifyError(err error, operation string) *ClassifiedError {
	if err == nil {
		return nil
	}

	ce := &ClassifiedError{Category: ErrorCategoryUnknown, Operation: operation, Err: err}

	var adsErr ads.Error
	if errors.As(err, &adsErr) {
		ce.Category = ErrorCategoryADS
		ce.ADSError = &adsErr
		ce.Retryable = isRetryableADSError(adsErr)
		return ce
	}

	if errors.Is(err, transport.ErrConnectionClosed) || errors.Is(err, transport.ErrConnectionFailed) {
		ce.Category = ErrorCategoryState
		return ce
	}

	msg := err.Error()

	if containsAny(msg, "connection refused", "connection reset", "broken pipe",
		"network is unreachable", "no route to host", "dial") {
		ce.Category = ErrorCategoryNetwork
		ce.Retryable = true
		return ce
	}

	if containsAny(msg, "timeout", "deadline exceeded") {
		ce.Category = ErrorCategoryTimeout
		ce.Retryable = true
		return ce
	}

	if containsAny(msg, "cannot be empty", "must be positive", "invalid") {
		ce.Category = ErrorCategoryValidation
		return ce
	}

	if containsAny(msg, "marshal", "unmarshal", "frame", "packet", "header") {
		ce.Category = ErrorCategoryProtocol
		return ce
	}

	return ce
}

func isRetryableADSError(err ads.Error) bool {
	switch err {
	case ads.ErrTargetPortNotFound, ads.ErrTargetMachineNotFound, ads.ErrDeviceBusy, ads.ErrDevicePending:
		return true
	default:
		return false
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NewNetworkError creates a classified, retryable network error.
func NewNetworkError(operation string, err error) error {
	return &ClassifiedError{Category: ErrorCategoryNetwork, Operation: operation, Err: err, Retryable: true}
}

// NewValidationError creates a classified validation error.
func NewValidationError(operation, message string) error {
	return &ClassifiedError{Category: ErrorCategoryValidation, Operation: operation, Err: errors.New(message)}
}

// NewADSError creates a classified ADS protocol error.
func NewADSError(operation string, adsErr ads.Error) error {
	return &ClassifiedError{Category: ErrorCategoryADS, Operation: operation, Err: adsErr, ADSError: &adsErr, Retryable: isRetryableADSError(adsErr)}
}

// NewStateError creates a classified client-state error (e.g. closed client).
func NewStateError(operation, message string) error {
	return &ClassifiedError{Category: ErrorCategoryState, Operation: operation, Err: errors.New(message)}
}
