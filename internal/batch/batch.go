package batch

import (
	"fmt"

	"photo-resizer-go/internal/resizer"
)

// Request describes one batch run.
type Request struct {
	SourceDir  string
	OutputDir  string
	Prefix     string
	MaxWidth   int
	MaxSizeKB  int
	Extensions []string // resizer.DefaultExtensions when empty
}

// MaxSizeBytes returns the size budget in bytes.
func (r Request) MaxSizeBytes() int64 {
	return int64(r.MaxSizeKB) * 1024
}

// Validate checks the request before any file is touched.
func (r Request) Validate() error {
	if r.SourceDir == "" {
		return fmt.Errorf("source directory is required")
	}
	if r.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if r.Prefix == "" {
		return fmt.Errorf("prefix is required")
	}
	if r.MaxWidth <= 0 {
		return fmt.Errorf("max width must be positive, got %d", r.MaxWidth)
	}
	if r.MaxSizeKB <= 0 {
		return fmt.Errorf("max size must be positive, got %d KB", r.MaxSizeKB)
	}
	return nil
}

// FileError records a per-file failure.
type FileError struct {
	Path      string
	Operation string
	Message   string
	Err       error
}

// Result is the outcome of a batch. It has no overall success flag: per-file
// failures are listed in Errors and never stop the batch.
type Result struct {
	Found   int
	Outputs []resizer.EncodedOutput
	Skipped []string
	Errors  []FileError
}

// PlannedFile is the skip-predicate decision for one file.
type PlannedFile struct {
	Path     string
	Source   resizer.SourceImage
	Sequence int // 0 when the file is skipped or could not be probed
	Reason   string
	Err      error
}

// EventType identifies a progress event.
type EventType string

const (
	EventProcessed EventType = "processed"
	EventSkipped   EventType = "skipped"
	EventError     EventType = "error"
	EventDone      EventType = "done"
)

// Event is reported to the ProgressHook after each file and once at the end.
type Event struct {
	Type     EventType
	File     string
	Sequence int
	Output   *resizer.EncodedOutput
	Message  string
}

// ProgressHook receives progress events, e.g. to forward them to a WebSocket.
type ProgressHook func(Event)
