package matching

import "errors"

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrPreferencesNotFound = errors.New("preference vector not found")
	ErrVersionConflict     = errors.New("concurrent update conflict")
	ErrPersistence         = errors.New("persistence failure")
	ErrInvalidInteraction  = errors.New("invalid interaction type")
	ErrSelfInteraction     = errors.New("cannot interact with your own profile")
)
