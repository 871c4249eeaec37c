package sequencer

import "errors"

// Common participant errors
var (
	ErrNotConnected = errors.New("not connected to coordinator")
	ErrStopped      = errors.New("participant is stopped")
)
