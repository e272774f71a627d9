package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIngestion reports that an external id was already recorded.
	ErrDuplicateIngestion = errors.New("duplicate ingestion")

	// ErrMissingCredentials reports that an inbox integration has no usable OAuth token.
	ErrMissingCredentials = errors.New("missing credentials")
)

// ValidationError is returned for malformed user input. Hint carries a
// corrective example suitable for showing to the user.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CollaboratorError wraps a failure of an external collaborator
// (classifier, OCR, inbox).
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// StorageError wraps a failure of the expense store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError with a user-facing hint.
func NewValidationError(field, message, hint string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Hint: hint}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err carries a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsCollaborator reports whether err carries a CollaboratorError.
func IsCollaborator(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
