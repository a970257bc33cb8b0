package repositorycache

import "errors"

// ErrReadOnly is returned by write methods when no StationWriter was
// configured.
var ErrReadOnly = errors.New("cached stations: no writer configured")
