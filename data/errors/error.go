package errors

import (
	"errors"
	"fmt"
)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func newError(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

func withCause(err error, cause error) error {
	if cause == nil {
		return err
	}

	return fmt.Errorf("%w: %w", err, cause)
}
