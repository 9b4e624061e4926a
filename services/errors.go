package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("not allowed")
)

// ValidationError rejects user input; nothing was written.
type ValidationError struct {
	// Op is the operation that rejected the input (e.g. "AddPayment").
	Op      string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IntegrityError rejects a mutation that would orphan dependent rows.
type IntegrityError struct {
	Op      string
	Message string
}

func (e *IntegrityError) Error() string {
	return e.Message
}

func invalid(op, format string, args ...any) error {
	return &ValidationError{Op: op, Message: fmt.Sprintf(format, args...)}
}

func conflict(op, format string, args ...any) error {
	return &IntegrityError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// lookup maps gorm's not-found onto ErrNotFound with the entity name attached.
func lookup(err error, what string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %v: %w", what, id, err)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
