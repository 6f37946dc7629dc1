package turn

import "fmt"

// Error is the single reportable failure a pipeline surfaces to its caller.
// Pipelines catch internal errors once at their boundary and wrap them with
// the pipeline name; intermediate layers never wrap.
type Error struct {
	Pipeline string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generating response in %s: %s", e.Pipeline, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds the boundary error for a pipeline. A nil err passes through.
func Wrap(pipeline string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Pipeline: pipeline, Err: err}
}
