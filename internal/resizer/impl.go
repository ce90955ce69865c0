package resizer

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"photo-resizer-go/internal/logger"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// DefaultResizer is the default implementation of the Resizer interface.
type DefaultResizer struct {
	search     QualitySearch
	logger     *logrus.Logger
	autoOrient bool
}

// NewDefaultResizer creates a new DefaultResizer instance.
func NewDefaultResizer(search QualitySearch, logger *logrus.Logger) *DefaultResizer {
	return &DefaultResizer{
		search: search,
		logger: logger,
	}
}

// WithAutoOrient makes Probe and Resize apply the EXIF orientation tag.
// When off, photos are measured and scaled as stored.
func (r *DefaultResizer) WithAutoOrient(enabled bool) *DefaultResizer {
	r.autoOrient = enabled
	return r
}

// Probe returns the dimensions and byte size of the file at path.
func (r *DefaultResizer) Probe(path string) (SourceImage, error) {
	src, err := probeImage(path, r.autoOrient)
	if err != nil {
		return SourceImage{}, &DecodeError{Path: path, Err: err}
	}
	return src, nil
}

// Resize scales src to spec.MaxWidth and re-encodes it at decreasing quality
// until the output fits spec.MaxSizeBytes or the quality floor is reached.
func (r *DefaultResizer) Resize(src SourceImage, spec ResizeSpec) (EncodedOutput, error) {
	if err := spec.Validate(); err != nil {
		return EncodedOutput{}, fmt.Errorf("invalid resize spec: %w", err)
	}
	if err := r.search.Validate(); err != nil {
		return EncodedOutput{}, fmt.Errorf("invalid quality search: %w", err)
	}

	img, err := decodeImage(src.Path, r.autoOrient)
	if err != nil {
		return EncodedOutput{}, &DecodeError{Path: src.Path, Err: err}
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return EncodedOutput{}, &DecodeError{Path: src.Path, Err: fmt.Errorf("empty image")}
	}

	width, height := TargetSize(bounds.Dx(), bounds.Dy(), spec.MaxWidth)
	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	out := EncodedOutput{
		SourcePath: src.Path,
		Path:       spec.OutputPath(),
		Width:      width,
		Height:     height,
	}
	log := logger.WithOutput(r.logger, src.Path, out.Path)

	var buf bytes.Buffer
	quality := r.search.Start
	for {
		buf.Reset()
		if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return out, &EncodeError{Path: out.Path, Err: err}
		}
		if err := writeFileAtomic(out.Path, buf.Bytes()); err != nil {
			return out, &EncodeError{Path: out.Path, Err: err}
		}

		size := int64(buf.Len())
		out.Attempts = append(out.Attempts, Attempt{Quality: quality, Size: size})
		out.Quality = quality
		out.Size = size
		log.Debugf("Encoded at quality %d: %d bytes", quality, size)

		if size <= spec.MaxSizeBytes {
			out.BudgetMet = true
			break
		}
		if quality <= r.search.Floor {
			break
		}
		quality = max(quality-r.search.Step, r.search.Floor)
	}

	if !out.BudgetMet {
		log.Warnf("Size budget unmet at quality floor %d: %d > %d bytes", out.Quality, out.Size, spec.MaxSizeBytes)
	}
	return out, nil
}

// TargetSize returns maxWidth and the height that preserves the aspect ratio,
// rounded to the nearest pixel. Narrower sources are scaled up.
func TargetSize(srcWidth, srcHeight, maxWidth int) (int, int) {
	scale := float64(maxWidth) / float64(srcWidth)
	height := int(math.Round(float64(srcHeight) * scale))
	if height < 1 {
		height = 1
	}
	return maxWidth, height
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write tmp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
