package services

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned when no model has been loaded.
	ErrModelUnavailable = errors.New("model not loaded")
	// ErrInference marks failures while building the frame or running the classifier.
	ErrInference = errors.New("prediction failed")
)

// InferenceError carries the cause of an inference failure. It matches
// ErrInference with errors.Is.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

// Unwrap returns the cause.
func (e *InferenceError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInference.
func (e *InferenceError) Is(target error) bool { return target == ErrInference }

// Detail returns the cause text for client-facing messages.
func (e *InferenceError) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
