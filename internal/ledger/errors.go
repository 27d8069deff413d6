package ledger

import (
	"errors"
	"fmt"
)

// Error taxonomy of the stock ledger. Every failure returned by a ledger
// operation wraps exactly one of these; classify with errors.Is.
var (
	ErrValidation             = errors.New("validation failed")
	ErrEntityNotFound         = errors.New("entity not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrAlreadyProcessed       = errors.New("already processed")
	ErrForbidden              = errors.New("forbidden")
	ErrBlockingParentDeleted  = errors.New("blocking parent deleted")
	ErrNegativeResultRejected = errors.New("negative result rejected")
)

// RuleError names the specific rule that was violated
type RuleError struct {
	Kind error
	Rule string
}

func (e *RuleError) Error() string {
	return e.Rule
}

func (e *RuleError) Unwrap() error {
	return e.Kind
}

// Violation wraps kind with a short message naming the rule
func Violation(kind error, format string, args ...interface{}) error {
	return &RuleError{Kind: kind, Rule: fmt.Sprintf(format, args...)}
}

// NotFound is shorthand for an ErrEntityNotFound violation on an entity label
func NotFound(entity string) error {
	return Violation(ErrEntityNotFound, "%s not found", entity)
}

// Code returns the stable error code of a ledger failure, or "" for errors outside the taxonomy
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrEntityNotFound):
		return "ENTITY_NOT_FOUND"
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrAlreadyProcessed):
		return "ALREADY_PROCESSED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrBlockingParentDeleted):
		return "BLOCKING_PARENT_DELETED"
	case errors.Is(err, ErrNegativeResultRejected):
		return "NEGATIVE_RESULT_REJECTED"
	}
	return ""
}

// RuleMessage returns the rule text of a ledger failure
func RuleMessage(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Rule
	}
	return err.Error()
}
