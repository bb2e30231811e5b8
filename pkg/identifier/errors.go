package identifier

import "errors"

// ErrUnsafeIdentifier is returned by the assert helpers when a value must
// not be embedded in generated SQL.
var ErrUnsafeIdentifier = errors.New("unsafe sql identifier")
