package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"photo-resizer-go/internal/logger"
	"photo-resizer-go/internal/resizer"
	"photo-resizer-go/internal/statistics"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Driver resizes the eligible files of one directory, one at a time.
type Driver struct {
	resizer resizer.Resizer
	logger  *logrus.Logger
	stats   *statistics.Statistics
	hook    ProgressHook
}

// NewDriver returns a new Driver.
func NewDriver(r resizer.Resizer, logger *logrus.Logger, stats *statistics.Statistics) *Driver {
	return NewDriverWithHook(r, logger, stats, nil)
}

// NewDriverWithHook returns a Driver that reports progress events to hook.
func NewDriverWithHook(r resizer.Resizer, logger *logrus.Logger, stats *statistics.Statistics, hook ProgressHook) *Driver {
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	return &Driver{
		resizer: r,
		logger:  logger,
		stats:   stats,
		hook:    hook,
	}
}

// Stats returns the statistics collected by the driver.
func (d *Driver) Stats() *statistics.Statistics {
	return d.stats
}

// ProcessBatch resizes every file in req.SourceDir that is wider than
// req.MaxWidth or larger than the size budget. Outputs are numbered from 1
// in filename order. Only an invalid request, an output directory that
// cannot be created or an unreadable source directory abort the batch; a
// cancelled ctx stops it between files.
func (d *Driver) ProcessBatch(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"source":      req.SourceDir,
		"output":      req.OutputDir,
		"prefix":      req.Prefix,
		"max_width":   req.MaxWidth,
		"max_size_kb": req.MaxSizeKB,
	}).Info("Starting resize batch")

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, &resizer.DirectoryError{Path: req.OutputDir, Err: err}
	}

	files, err := d.discoverFiles(req)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	result := &Result{Found: len(files)}
	if len(files) == 0 {
		d.logger.Info("No eligible files found")
	} else {
		d.logger.Infof("Found %d eligible files", len(files))
	}

	sequence := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			logger.WithOperation(d.logger, "batch").Warnf("Batch interrupted after %d outputs", len(result.Outputs))
			d.finish(result)
			return result, err
		}
		d.stats.IncrementFilesVisited()

		src, reason, process, err := d.evaluate(path, req)
		if err != nil {
			d.recordError(result, path, "probe", err)
			continue
		}
		if !process {
			d.recordSkip(result, path, reason)
			continue
		}

		sequence++
		spec := resizer.ResizeSpec{
			MaxWidth:     req.MaxWidth,
			MaxSizeBytes: req.MaxSizeBytes(),
			Prefix:       req.Prefix,
			Sequence:     sequence,
			OutputDir:    req.OutputDir,
		}
		d.processFile(result, src, spec, reason)
	}

	d.finish(result)
	return result, nil
}

// Plan evaluates the skip predicate for every eligible file and assigns the
// sequence numbers ProcessBatch would use, without writing anything.
func (d *Driver) Plan(req Request) ([]PlannedFile, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	files, err := d.discoverFiles(req)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	plan := make([]PlannedFile, 0, len(files))
	sequence := 0
	for _, path := range files {
		src, reason, process, err := d.evaluate(path, req)
		entry := PlannedFile{Path: path, Source: src, Reason: reason, Err: err}
		if err == nil && process {
			sequence++
			entry.Sequence = sequence
		}
		plan = append(plan, entry)
	}
	return plan, nil
}

// discoverFiles lists the accepted files of req.SourceDir, non-recursively,
// sorted by filename.
func (d *Driver) discoverFiles(req Request) ([]string, error) {
	entries, err := os.ReadDir(req.SourceDir)
	if err != nil {
		return nil, err
	}

	extensions := req.Extensions
	if len(extensions) == 0 {
		extensions = resizer.DefaultExtensions
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !resizer.HasExtension(extensions, entry.Name()) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		files = append(files, filepath.Join(req.SourceDir, entry.Name()))
		d.stats.IncrementFilesFound()
		d.stats.IncrementFileType(strings.ToUpper(strings.TrimPrefix(ext, ".")))
	}
	return files, nil
}

// evaluate probes a file and applies the skip predicate: a file is processed
// when it is larger than the budget or wider than the target width.
func (d *Driver) evaluate(path string, req Request) (resizer.SourceImage, string, bool, error) {
	src, err := d.resizer.Probe(path)
	if err != nil {
		return resizer.SourceImage{}, "", false, err
	}

	var reasons []string
	if src.Size > req.MaxSizeBytes() {
		reasons = append(reasons, fmt.Sprintf("size %s > %s",
			humanize.IBytes(uint64(src.Size)), humanize.IBytes(uint64(req.MaxSizeBytes()))))
	}
	if src.Width > req.MaxWidth {
		reasons = append(reasons, fmt.Sprintf("width %d > %d", src.Width, req.MaxWidth))
	}
	if len(reasons) == 0 {
		return src, "within limits", false, nil
	}
	return src, strings.Join(reasons, ", "), true, nil
}

// processFile resizes one file and records the outcome.
func (d *Driver) processFile(result *Result, src resizer.SourceImage, spec resizer.ResizeSpec, reason string) {
	logger.WithSequence(d.logger, src.Path, spec.Sequence).Debugf("Resizing: %s", reason)

	out, err := d.resizer.Resize(src, spec)
	if err != nil {
		d.recordError(result, src.Path, operationFor(err), err)
		return
	}

	result.Outputs = append(result.Outputs, out)
	d.stats.AddResized(src.Size, out.Size, len(out.Attempts), out.BudgetMet)
	logger.WithOutput(d.logger, src.Path, out.Path).Infof("Resized file: %s -> %s (%dx%d, quality %d, %s)",
		src.Path, out.Path, out.Width, out.Height, out.Quality, humanize.IBytes(uint64(out.Size)))

	d.emit(Event{
		Type:     EventProcessed,
		File:     src.Path,
		Sequence: spec.Sequence,
		Output:   &out,
		Message:  fmt.Sprintf("%s -> %s", filepath.Base(src.Path), filepath.Base(out.Path)),
	})
}

func (d *Driver) recordSkip(result *Result, path, reason string) {
	result.Skipped = append(result.Skipped, path)
	d.stats.IncrementFilesSkipped()
	logger.WithSource(d.logger, path).Debugf("Skipping file: %s", reason)
	d.emit(Event{Type: EventSkipped, File: path, Message: reason})
}

func (d *Driver) recordError(result *Result, path, operation string, err error) {
	result.Errors = append(result.Errors, FileError{
		Path:      path,
		Operation: operation,
		Message:   err.Error(),
		Err:       err,
	})
	d.stats.AddError(path, operation, err.Error())
	logger.WithFailure(d.logger, path, operation).Errorf("Could not resize file: %v", err)
	d.emit(Event{Type: EventError, File: path, Message: err.Error()})
}

func (d *Driver) finish(result *Result) {
	d.stats.Finalize()
	d.logger.WithFields(logrus.Fields{
		"outputs": len(result.Outputs),
		"skipped": len(result.Skipped),
		"errors":  len(result.Errors),
	}).Info("Resize batch completed")
	d.emit(Event{
		Type:    EventDone,
		Message: fmt.Sprintf("%d resized, %d skipped, %d errors", len(result.Outputs), len(result.Skipped), len(result.Errors)),
	})
}

func (d *Driver) emit(e Event) {
	if d.hook != nil {
		d.hook(e)
	}
}

// operationFor names the failed step for a resize error.
func operationFor(err error) string {
	var decodeErr *resizer.DecodeError
	var encodeErr *resizer.EncodeError
	switch {
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &encodeErr):
		return "encode"
	default:
		return "resize"
	}
}
