package resizer

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"
	"github.com/rwcarlsen/goexif/exif"
)

// isHEIC reports whether the path has a HEIC/HEIF extension.
func isHEIC(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".heic" || ext == ".heif"
}

// probeImage stats the file and reads its dimensions from the header only.
// With autoOrient, JPEG dimensions are swapped for EXIF orientations 5-8 so
// they match what decodeImage returns.
func probeImage(path string, autoOrient bool) (SourceImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SourceImage{}, fmt.Errorf("stat: %w", err)
	}
	if info.Size() == 0 {
		return SourceImage{}, fmt.Errorf("file is 0 bytes")
	}

	f, err := os.Open(path)
	if err != nil {
		return SourceImage{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var cfg image.Config
	if isHEIC(path) {
		cfg, err = heic.DecodeConfig(f)
	} else {
		cfg, _, err = image.DecodeConfig(f)
	}
	if err != nil {
		return SourceImage{}, fmt.Errorf("read header: %w", err)
	}

	width, height := cfg.Width, cfg.Height
	if autoOrient && !isHEIC(path) && swapsAxes(readOrientation(path)) {
		width, height = height, width
	}

	return SourceImage{
		Path:   path,
		Width:  width,
		Height: height,
		Size:   info.Size(),
	}, nil
}

// decodeImage decodes the full pixel buffer of a source image.
func decodeImage(path string, autoOrient bool) (image.Image, error) {
	if !isHEIC(path) {
		return imaging.Open(path, imaging.AutoOrientation(autoOrient))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return heic.Decode(f)
}

// readOrientation returns the EXIF orientation tag, or 1 if absent.
func readOrientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// swapsAxes reports whether an EXIF orientation rotates the image by 90 degrees.
func swapsAxes(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}
