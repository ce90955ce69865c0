package metadata

import (
	"fmt"

	"github.com/barasher/go-exiftool"
)

// ExiftoolInspector reads metadata through a long-running exiftool process.
type ExiftoolInspector struct {
	et *exiftool.Exiftool
}

// NewExiftoolInspector starts exiftool. It fails when the binary is not installed.
func NewExiftoolInspector() (*ExiftoolInspector, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &ExiftoolInspector{et: et}, nil
}

// Inspect returns all tags exiftool reports for path.
func (i *ExiftoolInspector) Inspect(path string) (Metadata, error) {
	files := i.et.ExtractMetadata(path)
	if len(files) == 0 {
		return Metadata{}, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if files[0].Err != nil {
		return Metadata{}, fmt.Errorf("exiftool %s: %w", path, files[0].Err)
	}
	return Metadata{Path: path, Fields: files[0].Fields}, nil
}

// Close stops the exiftool process.
func (i *ExiftoolInspector) Close() error {
	return i.et.Close()
}
