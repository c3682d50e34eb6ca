package synth

import "fmt"

// ValidationError rejects bad user input before any model work happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// GenerationError reports a model failure mid-request. The whole request
// aborts; no partial audio is returned.
type GenerationError struct {
	Chunk  int
	Chunks int
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate chunk %d/%d: %v", e.Chunk, e.Chunks, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
