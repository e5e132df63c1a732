package image

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies an image file encoding.
type Format string

const (
	FormatSRecord  Format = "srecord"
	FormatBinary   Format = "binary"
	FormatHex      Format = "hex"
	FormatIntelHex Format = "intelhex"
)

const intelHexLineLength = 16

var extensions = map[string]Format{
	".s19":  FormatSRecord,
	".bin":  FormatBinary,
	".hex":  FormatHex,
	".ihex": FormatIntelHex,
}

var exportNames = map[string]Format{
	"srec": FormatSRecord,
	"ihex": FormatIntelHex,
	"hex":  FormatHex,
	"bin":  FormatBinary,

	string(FormatSRecord):  FormatSRecord,
	string(FormatIntelHex): FormatIntelHex,
	string(FormatBinary):   FormatBinary,
}

// FileTypeOf selects the format from the file name extension. The file
// contents are never inspected.
func FileTypeOf(filename string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(filename))]
	return f, ok
}

// ParseExportFormat maps a format name given by the user to a Format.
func ParseExportFormat(name string) (Format, error) {
	f, ok := exportNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", &InvalidFormatError{Name: name}
	}
	return f, nil
}

// UnknownFileTypeError indicates a file name with an unsupported extension.
type UnknownFileTypeError struct {
	Name string
}

func (e *UnknownFileTypeError) Error() string {
	return fmt.Sprintf("unknown file type for '%s'", e.Name)
}

// InvalidFormatError indicates an unsupported export format.
type InvalidFormatError struct {
	Name string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid export format '%s'", e.Name)
}
