package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/facturo/facturo/internal/repository"
)

// Service errors.
var (
	ErrNotFound = errors.New("not found")
)

// ValidationError reports field-level violations.
type ValidationError struct {
	Fields map[string][]string
}

// Add records a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Err returns e when it has errors and nil otherwise.
func (e *ValidationError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// Messages returns "field message" strings sorted by field.
func (e *ValidationError) Messages() []string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var out []string
	for _, f := range fields {
		for _, m := range e.Fields[f] {
			out = append(out, f+" "+m)
		}
	}
	return out
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Messages(), ", "))
}

// fieldError returns a ValidationError for a single field.
func fieldError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// mapStoreError translates repository sentinels into service errors.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrAccountNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrEmailExists):
		return fieldError("email", "has already been taken")
	default:
		return err
	}
}
