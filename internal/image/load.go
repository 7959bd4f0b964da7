package image

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"pulmoprint/internal/errs"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Decoder turns an image locator into a grayscale intensity matrix.
// Failures are reported as *errs.DecodeError.
type Decoder interface {
	Decode(locator string) (*Matrix, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(locator string) (*Matrix, error)

// Decode calls f(locator).
func (f DecoderFunc) Decode(locator string) (*Matrix, error) {
	return f(locator)
}

// FileDecoder decodes image files from the local filesystem.
type FileDecoder struct{}

// Decode loads the file at path.
func (FileDecoder) Decode(path string) (*Matrix, error) {
	return Load(path)
}

// Load loads an image from the specified path and converts it to grayscale.
func Load(path string) (*Matrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &errs.DecodeError{Locator: path, Err: fmt.Errorf("failed to open image: %w", err)}
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, &errs.DecodeError{Locator: path, Err: fmt.Errorf("failed to decode image: %w", err)}
	}

	m := FromImage(img)
	if err := m.Validate(); err != nil {
		return nil, &errs.DecodeError{Locator: path, Err: err}
	}
	return m, nil
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg", ".gif", ".bmp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
