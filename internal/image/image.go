// Package image holds the sparse memory image moved to and from the 1802 and
// converts it between S-record, Intel HEX, raw binary and hex-pair text.
package image

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/marcinbor85/gohex"
)

// ErrSealed is returned when bytes are added after the image was rendered.
var ErrSealed = errors.New("image already exported")

// Segment is one contiguous run of bytes.
type Segment struct {
	Address uint32
	Data    []byte
}

// End returns the address following the last byte of the segment.
func (s Segment) End() uint32 {
	return s.Address + uint32(len(s.Data))
}

// Image is a sparse byte-addressed memory image.
type Image struct {
	mem    *gohex.Memory
	sealed bool
}

// New creates an empty image.
func New() *Image {
	return &Image{mem: gohex.NewMemory()}
}

// FromBytes creates an image holding data at address 0.
func FromBytes(data []byte) (*Image, error) {
	img := New()
	if err := img.Append(data); err != nil {
		return nil, err
	}
	return img, nil
}

// Add writes data at addr. Writing over bytes that are already present fails.
func (img *Image) Add(data []byte, addr uint32) error {
	if img.sealed {
		return ErrSealed
	}
	if len(data) == 0 {
		return nil
	}
	if uint64(addr)+uint64(len(data)) > 1<<32 {
		return fmt.Errorf("%d bytes at 0x%08X exceed the 32-bit address space", len(data), addr)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	if err := img.mem.AddBinary(addr, buf); err != nil {
		return fmt.Errorf("failed to add %d bytes at 0x%04X: %w", len(data), addr, err)
	}
	return nil
}

// Append writes data directly after the highest address in the image, or at
// address 0 when the image is empty.
func (img *Image) Append(data []byte) error {
	var addr uint32
	if !img.IsEmpty() {
		addr = img.MaxAddress() + 1
	}
	return img.Add(data, addr)
}

// Segments returns copies of the runs in ascending address order.
func (img *Image) Segments() []Segment {
	raw := img.mem.GetDataSegments()
	segs := make([]Segment, 0, len(raw))
	for _, s := range raw {
		if len(s.Data) == 0 {
			continue
		}
		data := make([]byte, len(s.Data))
		copy(data, s.Data)
		segs = append(segs, Segment{Address: s.Address, Data: data})
	}
	sort.Slice(segs, func(i, j int) bool {
		return segs[i].Address < segs[j].Address
	})
	return segs
}

// IsEmpty reports whether the image holds no bytes.
func (img *Image) IsEmpty() bool {
	return img.Len() == 0
}

// Len returns the number of bytes held, not counting gaps.
func (img *Image) Len() int {
	total := 0
	for _, s := range img.mem.GetDataSegments() {
		total += len(s.Data)
	}
	return total
}

// MinAddress returns the lowest address holding data.
func (img *Image) MinAddress() uint32 {
	segs := img.Segments()
	if len(segs) == 0 {
		return 0
	}
	return segs[0].Address
}

// MaxAddress returns the highest address holding data.
func (img *Image) MaxAddress() uint32 {
	segs := img.Segments()
	if len(segs) == 0 {
		return 0
	}
	return segs[len(segs)-1].End() - 1
}

// Span returns the number of addresses from the minimum to the maximum,
// including gaps.
func (img *Image) Span() int {
	if img.IsEmpty() {
		return 0
	}
	return int(img.MaxAddress()-img.MinAddress()) + 1
}

// HasGaps reports whether the image is made of more than one run.
func (img *Image) HasGaps() bool {
	return len(img.Segments()) > 1
}

// Bytes returns the flat binary from the minimum to the maximum address.
// Gaps are filled with zeros.
func (img *Image) Bytes() []byte {
	if img.IsEmpty() {
		return []byte{}
	}
	return img.mem.ToBinary(img.MinAddress(), uint32(img.Span()), 0x00)
}

// Render writes the image in the given format. The image is sealed
// afterwards.
func (img *Image) Render(w io.Writer, format Format) error {
	img.sealed = true

	switch format {
	case FormatSRecord:
		return writeSRecords(w, img.Segments())
	case FormatIntelHex:
		if err := img.mem.DumpIntelHex(w, intelHexLineLength); err != nil {
			return fmt.Errorf("failed to write Intel HEX: %w", err)
		}
		return nil
	case FormatBinary:
		_, err := w.Write(img.Bytes())
		return err
	case FormatHex:
		return writeHexPairs(w, img.Bytes())
	default:
		return &InvalidFormatError{Name: string(format)}
	}
}

// Import parses r in the given format into a new image.
func Import(format Format, r io.Reader) (*Image, error) {
	switch format {
	case FormatSRecord:
		return parseSRecords(r)
	case FormatIntelHex:
		mem := gohex.NewMemory()
		if err := mem.ParseIntelHex(r); err != nil {
			return nil, fmt.Errorf("failed to parse Intel HEX: %w", err)
		}
		return &Image{mem: mem}, nil
	case FormatBinary:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return FromBytes(data)
	case FormatHex:
		return parseHexPairs(r)
	default:
		return nil, &InvalidFormatError{Name: string(format)}
	}
}
