package idempotency

import "errors"

// PermanentError marks a business failure that redelivery can never fix,
// such as a malformed payload or a create for an entity that already exists.
type PermanentError struct {
	Reason string
	Cause  error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Reason + ": " + e.Cause.Error()
	}
	return e.Reason
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// Permanent wraps err as a PermanentError.
func Permanent(reason string, cause error) error {
	return &PermanentError{Reason: reason, Cause: cause}
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
