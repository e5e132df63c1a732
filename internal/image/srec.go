package image

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const srecDataBytes = 16

// RecordError reports a malformed S-record line.
type RecordError struct {
	Line int
	Msg  string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("S-record line %d: %s", e.Line, e.Msg)
}

// srecAddressLength returns the address width in bytes for a record type.
func srecAddressLength(kind byte) (int, bool) {
	switch kind {
	case '0', '1', '5', '9':
		return 2, true
	case '2', '6', '8':
		return 3, true
	case '3', '7':
		return 4, true
	}
	return 0, false
}

func parseSRecords(r io.Reader) (*Image, error) {
	img := New()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if len(line) < 4 || line[0] != 'S' {
			return nil, &RecordError{Line: lineNum, Msg: "missing record start"}
		}

		kind := line[1]
		addrLen, ok := srecAddressLength(kind)
		if !ok {
			return nil, &RecordError{Line: lineNum, Msg: fmt.Sprintf("unsupported record type S%c", kind)}
		}

		raw, err := hex.DecodeString(line[2:])
		if err != nil {
			return nil, &RecordError{Line: lineNum, Msg: "invalid hex digits"}
		}
		if int(raw[0]) != len(raw)-1 {
			return nil, &RecordError{Line: lineNum, Msg: fmt.Sprintf("byte count %d, have %d", raw[0], len(raw)-1)}
		}
		if len(raw) < 1+addrLen+1 {
			return nil, &RecordError{Line: lineNum, Msg: "record too short"}
		}

		body, checksum := raw[:len(raw)-1], raw[len(raw)-1]
		if srecChecksum(body) != checksum {
			return nil, &RecordError{Line: lineNum, Msg: fmt.Sprintf("checksum mismatch, expected 0x%02X", srecChecksum(body))}
		}

		if kind < '1' || kind > '3' {
			continue
		}

		var addr uint32
		for _, b := range body[1 : 1+addrLen] {
			addr = addr<<8 | uint32(b)
		}
		if err := img.Add(body[1+addrLen:], addr); err != nil {
			return nil, &RecordError{Line: lineNum, Msg: err.Error()}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return img, nil
}

func writeSRecords(w io.Writer, segs []Segment) error {
	var maxAddr uint32
	if len(segs) > 0 {
		maxAddr = segs[len(segs)-1].End() - 1
	}

	dataKind, termKind, addrLen := byte('1'), byte('9'), 2
	switch {
	case maxAddr > 0xFFFFFF:
		dataKind, termKind, addrLen = '3', '7', 4
	case maxAddr > 0xFFFF:
		dataKind, termKind, addrLen = '2', '8', 3
	}

	bw := bufio.NewWriter(w)
	count := 0
	for _, s := range segs {
		for off := 0; off < len(s.Data); off += srecDataBytes {
			end := off + srecDataBytes
			if end > len(s.Data) {
				end = len(s.Data)
			}
			writeSRecord(bw, dataKind, addrLen, s.Address+uint32(off), s.Data[off:end])
			count++
		}
	}

	if count <= 0xFFFF {
		writeSRecord(bw, '5', 2, uint32(count), nil)
	} else {
		writeSRecord(bw, '6', 3, uint32(count), nil)
	}
	writeSRecord(bw, termKind, addrLen, 0, nil)

	return bw.Flush()
}

func writeSRecord(w *bufio.Writer, kind byte, addrLen int, addr uint32, data []byte) {
	body := make([]byte, 0, 1+addrLen+len(data))
	body = append(body, byte(addrLen+len(data)+1))
	for i := addrLen - 1; i >= 0; i-- {
		body = append(body, byte(addr>>(8*i)))
	}
	body = append(body, data...)

	fmt.Fprintf(w, "S%c%X%02X\n", kind, body, srecChecksum(body))
}

// srecChecksum is the ones' complement of the low byte of the sum of the
// count, address and data bytes.
func srecChecksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return ^sum
}
