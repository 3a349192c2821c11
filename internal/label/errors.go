package label

import "fmt"

// LabelingError wraps a provider or transport failure during labeling.
// Diagnostic fallbacks for bad model output are not errors; only a call
// that never produced a response surfaces as LabelingError.
type LabelingError struct {
	Err error
}

func (e *LabelingError) Error() string {
	return fmt.Sprintf("labeling failed: %v", e.Err)
}

func (e *LabelingError) Unwrap() error {
	return e.Err
}
