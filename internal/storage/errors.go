package storage

import (
	"errors"
	"fmt"

	"github.com/DukeRupert/solarcheck/internal/domain"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrKeyExists    = errors.New("object already exists at this key")
	ErrInvalidKey   = errors.New("invalid storage key")
	ErrTooLarge     = errors.New("object exceeds maximum size")
	ErrAccessDenied = errors.New("access denied")
)

// StorageError records the operation and key of a failed storage call.
// errors.Is sees through it to the sentinel.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Code maps a storage error onto the application error codes. Errors that
// do not carry a known sentinel are treated as the backend being unavailable.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return domain.ENOTFOUND
	case errors.Is(err, ErrKeyExists):
		return domain.ECONFLICT
	case errors.Is(err, ErrInvalidKey):
		return domain.EINVALID
	case errors.Is(err, ErrTooLarge):
		return domain.ETOOLARGE
	case errors.Is(err, ErrAccessDenied):
		return domain.EINTERNAL
	default:
		return domain.EUNAVAILABLE
	}
}

// ToDomainError wraps err as a *domain.Error with the code from Code.
func ToDomainError(err error, op, message string) error {
	if err == nil {
		return nil
	}
	return domain.Wrap(err, Code(err), op, message)
}
