package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist or is not owned by
	// the caller. The two cases look the same.
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict indicates that the underlying storage rejected an
	// update because a newer version of the entity is already persisted.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrTooLarge is returned by a store that cannot hold a record of this
	// size.
	ErrTooLarge = errors.New("record too large")

	// ErrUserExists is returned when registering a taken username or email.
	ErrUserExists = errors.New("user with this email or username already exists")

	// ErrInvalidCredentials is returned when a login does not match a user.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed or out-of-range input. It is returned
// before any mutation takes place.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Add records a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// ErrOrNil returns e as an error when it holds at least one failure.
func (e *ValidationError) ErrOrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// errTodoTooLarge is the validation failure for a todo the store refused for
// its size.
func errTodoTooLarge() error {
	return NewValidationError("todo", "Todo exceeds the maximum stored size")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}
