package postprocess

import "fmt"

// The post-processing steps, in the order they run.
const (
	StepCleanup   = "cleanup"
	StepSimplify  = "simplify"
	StepFillHoles = "fill-holes"
	StepOrigin    = "origin"
)

// PostProcessError records a step that failed and was skipped. It never aborts processing.
type PostProcessError struct {
	Step string
	Err  error
}

func (e *PostProcessError) Error() string {
	return fmt.Sprintf("post-processing step %s skipped: %v", e.Step, e.Err)
}

func (e *PostProcessError) Unwrap() error {
	return e.Err
}
