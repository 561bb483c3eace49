package storage

import "fmt"

// ReadError wraps a backend failure during Read, Exists, or List with the
// affected key attached. ErrNotFound is never wrapped in a ReadError: a
// missing key is an expected condition, not an infrastructure failure.
type ReadError struct {
	Key Key
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("storage: read %s: %v", e.Key, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError wraps a backend failure during Write with the affected key
// attached. The backend detail is preserved verbatim for the caller.
type WriteError struct {
	Key Key
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage: write %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
