package economy

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrCapacityExceeded   = errors.New("employee capacity exceeded")
	ErrDuplicateUpgrade   = errors.New("permanent upgrade already owned")
	ErrInvalidEnumValue   = errors.New("invalid enum value")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrEventNotResolvable = errors.New("event cannot be resolved")

	ErrNotFound         = errors.New("not found")
	ErrBusinessNotFound = fmt.Errorf("business %w", ErrNotFound)
	ErrEmployeeNotFound = fmt.Errorf("employee %w", ErrNotFound)
	ErrEventNotFound    = fmt.Errorf("event %w", ErrNotFound)
)
