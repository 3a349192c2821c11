package extract

import "fmt"

// ExtractionError wraps any failure in the text-extraction step. The
// pipeline treats it as a terminal parse failure for the document.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed at %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func failed(stage string, err error) error {
	return &ExtractionError{Stage: stage, Err: err}
}
