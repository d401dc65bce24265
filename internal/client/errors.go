package client

import "errors"

// ErrNotBound means the device has not joined a circle yet, so there is
// nothing to sync against.
var ErrNotBound = errors.New("device is not bound to a circle")
