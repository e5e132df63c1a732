package image

import (
	"bytes"
	"fmt"
	"os"
)

// ReadFile imports a file, choosing the format from its extension.
func ReadFile(path string) (*Image, Format, error) {
	format, ok := FileTypeOf(path)
	if !ok {
		return nil, "", &UnknownFileTypeError{Name: path}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	img, err := Import(format, f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to import %s: %w", path, err)
	}
	return img, format, nil
}

// WriteFile renders the image in the given format and writes it to path.
func (img *Image) WriteFile(path string, format Format) error {
	var buf bytes.Buffer
	if err := img.Render(&buf, format); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
