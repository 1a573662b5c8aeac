// Package domain holds the error types shared by the storefront domain
// packages.
package domain

import "fmt"

// ValidationError indicates that user-supplied input failed a domain
// validation rule. Message is in pt-BR and safe to show to end users.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
