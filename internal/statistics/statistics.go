package statistics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Statistics contains all statistics for a resize batch.
type Statistics struct {
	TotalFilesFound   int64
	TotalFilesVisited int64 // every candidate evaluated, including failures
	FilesResized      int64
	FilesSkipped      int64
	FilesWithErrors   int64
	BudgetUnmet       int64
	EncodeAttempts    int64

	BytesIn  int64
	BytesOut int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64

	Errors []StatError

	mutex sync.RWMutex

	FileTypeStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:     time.Now(),
		FileTypeStats: make(map[string]int64),
		Errors:        make([]StatError, 0),
	}
}

// IncrementFilesFound increases the count of found files by 1.
func (s *Statistics) IncrementFilesFound() {
	atomic.AddInt64(&s.TotalFilesFound, 1)
}

// IncrementFilesVisited increases the count of files the batch looked at by 1.
func (s *Statistics) IncrementFilesVisited() {
	atomic.AddInt64(&s.TotalFilesVisited, 1)
}

// IncrementFilesSkipped increases the count of compliant files left untouched by 1.
func (s *Statistics) IncrementFilesSkipped() {
	atomic.AddInt64(&s.FilesSkipped, 1)
}

// AddResized records one written output.
func (s *Statistics) AddResized(bytesIn, bytesOut int64, attempts int, budgetMet bool) {
	atomic.AddInt64(&s.FilesResized, 1)
	atomic.AddInt64(&s.BytesIn, bytesIn)
	atomic.AddInt64(&s.BytesOut, bytesOut)
	atomic.AddInt64(&s.EncodeAttempts, int64(attempts))
	if !budgetMet {
		atomic.AddInt64(&s.BudgetUnmet, 1)
	}
}

// IncrementFileType increases the count for a specific file type by 1.
func (s *Statistics) IncrementFileType(fileType string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FileTypeStats[fileType]++
}

// Finalize calculates duration and throughput.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	totalVisited := atomic.LoadInt64(&s.TotalFilesVisited)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(totalVisited) / s.Duration.Seconds()
	}
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	atomic.AddInt64(&s.FilesWithErrors, 1)
	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	bytesIn := atomic.LoadInt64(&s.BytesIn)
	bytesOut := atomic.LoadInt64(&s.BytesOut)
	saved := 0.0
	if bytesIn > 0 {
		saved = float64(bytesIn-bytesOut) * 100 / float64(bytesIn)
	}

	return fmt.Sprintf(`Photo Resizer Statistics Summary:

Files:
		Total Found: %d
		Total Visited: %d
		Resized: %d
		Skipped: %d
		Errors: %d
		Over Budget: %d

Encoding:
		Encode Attempts: %d
		Bytes In: %s
		Bytes Out: %s
		Saved: %.1f%%

Performance:
		Duration: %v
		Files/Second: %.2f`,
		atomic.LoadInt64(&s.TotalFilesFound),
		atomic.LoadInt64(&s.TotalFilesVisited),
		atomic.LoadInt64(&s.FilesResized),
		atomic.LoadInt64(&s.FilesSkipped),
		atomic.LoadInt64(&s.FilesWithErrors),
		atomic.LoadInt64(&s.BudgetUnmet),
		atomic.LoadInt64(&s.EncodeAttempts),
		humanize.IBytes(uint64(bytesIn)),
		humanize.IBytes(uint64(bytesOut)),
		saved,
		s.Duration,
		s.FilesPerSecond)
}

// GetFileTypeBreakdown returns a formatted breakdown of file types found.
func (s *Statistics) GetFileTypeBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FileTypeStats) == 0 {
		return "No file type statistics available"
	}

	types := make([]string, 0, len(s.FileTypeStats))
	for fileType := range s.FileTypeStats {
		types = append(types, fileType)
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("File Type Breakdown:\n")
	for _, fileType := range types {
		fmt.Fprintf(&b, "  %s: %d\n", fileType, s.FileTypeStats[fileType])
	}
	return b.String()
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// Snapshot returns the counters as a map for JSON responses.
func (s *Statistics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"total_found":     atomic.LoadInt64(&s.TotalFilesFound),
		"total_visited":   atomic.LoadInt64(&s.TotalFilesVisited),
		"resized":         atomic.LoadInt64(&s.FilesResized),
		"skipped":         atomic.LoadInt64(&s.FilesSkipped),
		"errors":          atomic.LoadInt64(&s.FilesWithErrors),
		"over_budget":     atomic.LoadInt64(&s.BudgetUnmet),
		"encode_attempts": atomic.LoadInt64(&s.EncodeAttempts),
		"bytes_in":        atomic.LoadInt64(&s.BytesIn),
		"bytes_out":       atomic.LoadInt64(&s.BytesOut),
	}
}

// GetFilesWithErrors returns the total number of files with errors.
func (s *Statistics) GetFilesWithErrors() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return int64(len(s.Errors))
}
