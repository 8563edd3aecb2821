package fact

import "github.com/pkg/errors"

// ErrInvalidRequest marks malformed specs, headers and builder misuse.
var ErrInvalidRequest = errors.New("invalid request")

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidRequest, format, args...)
}
