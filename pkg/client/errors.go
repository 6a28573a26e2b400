package client

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassCancelled represents a cancellation token triggered before settlement.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassUpstream represents failures reported by the remote operation itself.
	ErrorClassUpstream ErrorClass = "upstream"
)

// FetchError represents a failed remote operation with its classification.
type FetchError struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("catalog %s error (status %d): %s: %v", e.Class, e.StatusCode, e.Message, e.Err)
		}
		return fmt.Sprintf("catalog %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error: %s", e.Class, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewCancellationError wraps err as a cancellation failure.
func NewCancellationError(err error) *FetchError {
	if err == nil {
		err = context.Canceled
	}
	return &FetchError{Class: ErrorClassCancelled, Message: "request cancelled", Err: err}
}

// Classify returns the class of err. Context cancellation and deadline
// errors are always cancellations; unknown errors count as network errors.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassCancelled
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ErrorClassNetwork
}

// IsCancellation reports whether err is a cancellation.
func IsCancellation(err error) bool {
	return Classify(err) == ErrorClassCancelled
}
