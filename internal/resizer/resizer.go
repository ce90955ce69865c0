package resizer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Quality search bounds for the JPEG re-encode loop.
const (
	DefaultStartQuality = 85
	DefaultQualityFloor = 10
	DefaultQualityStep  = 5
)

// DefaultExtensions lists the source formats the resizer can decode.
var DefaultExtensions = []string{".jpg", ".jpeg", ".heic"}

// HasExtension reports whether path ends in one of extensions, ignoring case.
func HasExtension(extensions []string, path string) bool {
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// SourceImage describes a source photo on disk. Width and Height are the
// stored pixel dimensions unless the resizer auto-orients.
type SourceImage struct {
	Path   string
	Width  int
	Height int
	Size   int64
}

// ResizeSpec defines the constraints for producing one output file.
type ResizeSpec struct {
	MaxWidth     int
	MaxSizeBytes int64
	Prefix       string
	Sequence     int
	OutputDir    string
}

// OutputPath returns {OutputDir}/{Prefix}-{Sequence}.jpg.
func (s ResizeSpec) OutputPath() string {
	return filepath.Join(s.OutputDir, fmt.Sprintf("%s-%d.jpg", s.Prefix, s.Sequence))
}

// Validate checks that the spec can produce an output.
func (s ResizeSpec) Validate() error {
	if s.MaxWidth <= 0 {
		return fmt.Errorf("max width must be positive, got %d", s.MaxWidth)
	}
	if s.MaxSizeBytes <= 0 {
		return fmt.Errorf("max size must be positive, got %d", s.MaxSizeBytes)
	}
	if s.Sequence <= 0 {
		return fmt.Errorf("sequence must be positive, got %d", s.Sequence)
	}
	return nil
}

// Attempt is one iteration of the quality search.
type Attempt struct {
	Quality int
	Size    int64
}

// EncodedOutput describes the file produced for one source image.
type EncodedOutput struct {
	SourcePath string
	Path       string
	Width      int
	Height     int
	Quality    int
	Size       int64
	// BudgetMet is false when the quality floor was reached with Size still
	// above the budget. The file is kept either way.
	BudgetMet bool
	Attempts  []Attempt
}

// QualitySearch configures the linear quality search.
type QualitySearch struct {
	Start int
	Floor int
	Step  int
}

// DefaultQualitySearch returns the 85 -> 10 step 5 search.
func DefaultQualitySearch() QualitySearch {
	return QualitySearch{
		Start: DefaultStartQuality,
		Floor: DefaultQualityFloor,
		Step:  DefaultQualityStep,
	}
}

// Validate checks the search bounds.
func (q QualitySearch) Validate() error {
	if q.Start < 1 || q.Start > 100 {
		return fmt.Errorf("start quality must be in [1,100], got %d", q.Start)
	}
	if q.Floor < 1 || q.Floor > q.Start {
		return fmt.Errorf("quality floor must be in [1,%d], got %d", q.Start, q.Floor)
	}
	if q.Step <= 0 {
		return fmt.Errorf("quality step must be positive, got %d", q.Step)
	}
	return nil
}

// Resizer defines the interface for the resize-and-compress step.
type Resizer interface {
	// Probe reads dimensions and byte size of a source without decoding pixels.
	Probe(path string) (SourceImage, error)
	// Resize decodes src, scales it to spec.MaxWidth and writes a JPEG at
	// spec.OutputPath() that fits spec.MaxSizeBytes when possible.
	Resize(src SourceImage, spec ResizeSpec) (EncodedOutput, error)
}
