package sandbox

import "errors"

// Expected, recoverable-by-caller execution errors. Callers match these
// with errors.Is; the action gate turns them into failed log entries
// rather than crashing.
var (
	ErrNotFound      = errors.New("file not found")
	ErrNotADirectory = errors.New("not a directory")
	ErrUnknownTool   = errors.New("unknown tool")
	ErrOutsideRoot   = errors.New("path outside sandbox root")
)
