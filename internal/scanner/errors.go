package scanner

import "errors"

var (
	// ErrDeviceLost ends a session: the capture device stopped answering.
	ErrDeviceLost = errors.New("capture device lost")
	// ErrSourceClosed is returned by a source used after Close.
	ErrSourceClosed = errors.New("capture source closed")
)
