package tenancy

import "errors"

var (
	// ErrInvalidConfig indicates the configuration failed eager validation.
	ErrInvalidConfig = errors.New("tenancy: invalid config")

	// ErrDirectoryRequired is returned when a manager is built without a
	// tenant directory.
	ErrDirectoryRequired = errors.New("tenancy: tenant directory is required")

	// ErrProviderRequired is returned when no isolation provider is given
	// and none can be built from the configuration.
	ErrProviderRequired = errors.New("tenancy: isolation provider is required, pass WithProvider or WithMasterPool")

	// ErrManagerClosed is returned from operations after Close.
	ErrManagerClosed = errors.New("tenancy: manager is closed")

	// ErrConnStringRequired is returned from migration helpers when the
	// manager was built without a master connection string.
	ErrConnStringRequired = errors.New("tenancy: master connection string is required, pass WithMasterPool")
)
