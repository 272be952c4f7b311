package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated indicates missing, invalid or expired credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates an authenticated caller lacks a required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the target entity does not exist in the caller's scope.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request payload was rejected.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness or state conflict.
	ErrConflict = errors.New("conflict")
)

// ValidationError collects field-specific messages. It matches ErrValidation.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], "; "))
	}
	return strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// InvalidField reports a single rejected field.
func InvalidField(field, message string) error {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// NotFound reports a missing entity in the caller's scope.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: Entity %q (%s) was not found.", ErrNotFound, entity, id)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
