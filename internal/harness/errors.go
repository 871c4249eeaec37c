package harness

import "errors"

// ErrNoParticipants means every participant failed to connect and the run
// cannot proceed.
var ErrNoParticipants = errors.New("no participants connected")
