package sumcache

import "fmt"

// ProcessingError is a failure computing a token for one file.
// Op is one of "quick", "lookup" or "hash".
type ProcessingError struct {
	Path string
	Op   string
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Path, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
