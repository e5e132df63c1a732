package image

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const (
	hexPairsPerLine  = 16
	maxHexLineLength = 1 << 20
)

var hexPairPattern = regexp.MustCompile(`[0-9A-Fa-f]{2}`)

// parseHexPairs reads the address-less hex-pair text format. Every pair of
// hex digits on a non-comment line is appended in file order; anything
// between pairs is ignored.
func parseHexPairs(r io.Reader) (*Image, error) {
	var data []byte

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxHexLineLength)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		for _, pair := range hexPairPattern.FindAllString(line, -1) {
			b, err := strconv.ParseUint(pair, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid hex pair %q: %w", pair, err)
			}
			data = append(data, byte(b))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return FromBytes(data)
}

func writeHexPairs(w io.Writer, data []byte) error {
	bw := bufio.NewWriter(w)
	for off := 0; off < len(data); off += hexPairsPerLine {
		end := off + hexPairsPerLine
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(bw, "%X\n", data[off:end])
	}
	return bw.Flush()
}
