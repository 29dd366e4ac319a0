package bounty

import (
	"errors"
	"fmt"

	"github.com/terra-clan/bounty-board/internal/storage"
)

// Domain errors. Failures wrap one of these so callers can use errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyAnnounced = errors.New("the winners have already been selected")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTransport        = errors.New("storage unavailable")
)

// Kind is the machine-checkable class of a domain error
type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindNotFound         Kind = "not_found"
	KindAlreadyAnnounced Kind = "already_announced"
	KindUnauthorized     Kind = "unauthorized"
	KindTransport        Kind = "transport_error"
	KindInternal         Kind = "internal_error"
)

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyAnnounced):
		return KindAlreadyAnnounced
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storageError maps a repository failure onto the domain taxonomy
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	default:
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
}
