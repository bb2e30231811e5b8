package audit

import "errors"

var (
	// ErrEventValidation indicates an audit event is missing required fields.
	ErrEventValidation = errors.New("audit: invalid event")

	// ErrStorageRequired is returned when a logger is built without storage.
	ErrStorageRequired = errors.New("audit: storage is required")
)
