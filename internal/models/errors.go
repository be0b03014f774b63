package models

import "errors"

var (
	ErrValidation                     = errors.New("validation failed")
	ErrDuplicatePost                  = errors.New("visitor has already posted")
	ErrWrite                          = errors.New("write failed")
	ErrFeedSync                       = errors.New("feed sync failed")
	ErrIdentityPersistenceUnavailable = errors.New("identity persistence unavailable")
	ErrSubmitInFlight                 = errors.New("submission already in flight")
)

// ValidationError reports the first draft field that failed its constraints.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
