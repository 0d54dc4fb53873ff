package utils

import "fmt"

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// PanicError converts a recovered panic value into an AppError for op.
func PanicError(op string, recovered any) error {
	if err, ok := recovered.(error); ok {
		return &AppError{Op: op, Msg: "panic", Err: err}
	}
	return &AppError{Op: op, Msg: fmt.Sprintf("panic: %v", recovered)}
}
