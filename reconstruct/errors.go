package reconstruct

import (
	"fmt"
)

// ReconstructionError is returned when a strategy cannot produce a mesh from the given cloud.
type ReconstructionError struct {
	Method Method
	Points int
	Reason string
	Err    error
}

func (e *ReconstructionError) Error() string {
	msg := fmt.Sprintf("%s reconstruction of %d points failed: %s", e.Method, e.Points, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReconstructionError) Unwrap() error {
	return e.Err
}
