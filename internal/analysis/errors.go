package analysis

import (
	"errors"
	"fmt"
)

// Failure kinds reported by a Bridge. Callers match them with errors.Is.
var (
	ErrStagingFailed  = errors.New("could not stage diff for engine input")
	ErrSpawnFailed    = errors.New("could not launch analysis engine")
	ErrEngineFailed   = errors.New("analysis engine failed")
	ErrEngineTimeout  = errors.New("analysis engine timed out")
	ErrEncodingFailed = errors.New("engine output is not valid UTF-8")
)

// EngineError is returned when the engine exits with a non-zero status.
// Stderr holds the tail of its standard error, verbatim.
type EngineError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("engine exited with status %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *EngineError) Is(target error) bool { return target == ErrEngineFailed }

func (e *EngineError) Unwrap() error { return e.Err }
