package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidBatchNumber = errors.New("invalid batch number, expected LOTE-YYYYMMDD")
	ErrForbiddenStore     = errors.New("user is not allowed to act on this store")
	ErrNoStore            = errors.New("user is not linked to a store")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenRevoked       = errors.New("session has been signed out")
	ErrProfileNotFound    = errors.New("user has no valid profile")
	ErrProfileMismatch    = errors.New("profile not allowed for this area")
	ErrSendAllInProgress  = errors.New("send-all already running for this date")
	ErrUnknownReport      = errors.New("unknown report type")
)

// ValidationError rejects a request because of one field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
