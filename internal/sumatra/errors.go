package sumatra

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConcurrency is returned by NewPrinter when the concurrency limit is not positive.
	ErrInvalidConcurrency = errors.New("max concurrent printings must be greater than 0")
	// ErrAlreadyStarted is returned when Start is called twice on the same process.
	ErrAlreadyStarted = errors.New("process already started")
	// ErrNotStarted is returned when waiting on a process that was never started.
	ErrNotStarted = errors.New("process not started")
)

// LaunchError reports that the operating system could not start the tool.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
