package protocol

import (
	"fmt"
	"strings"
)

// Loader firmware control commands
const (
	CmdDownloadMode = "*D"
	CmdUploadMode   = "*U"
	CmdReset        = "*C"
	CmdRun          = "*R"
	CmdReadRequest  = "<"
)

// Acknowledgement bytes sent by the loader firmware
const (
	AckByte   = '!'
	ErrorByte = '#'
)

// Line framing
const (
	LineTerminator = '\n'

	// MaxHexPairs is the largest number of bytes carried by one data line or
	// requested by one read. It matches the firmware line buffer.
	MaxHexPairs = 16

	// MaxLineLength is the longest data line in hex characters.
	MaxLineLength = MaxHexPairs * 2

	// MaxAddress is the highest address the mode commands can carry.
	MaxAddress = 0xFFFF
)

// AckMode tells the command channel whether to wait for an acknowledgement.
type AckMode int

const (
	// AckRequired waits for a single ack byte after the command.
	AckRequired AckMode = iota
	// NoAck returns right after the write; the caller reads the response.
	NoAck
)

// String returns the mode name.
func (m AckMode) String() string {
	switch m {
	case AckRequired:
		return "ack"
	case NoAck:
		return "no-ack"
	default:
		return fmt.Sprintf("AckMode(%d)", int(m))
	}
}

// Command is one outbound protocol line.
type Command struct {
	Line string
	Ack  AckMode
}

// Encode returns the wire form of the command.
func (c Command) Encode() []byte {
	buf := make([]byte, 0, len(c.Line)+1)
	buf = append(buf, c.Line...)
	return append(buf, LineTerminator)
}

func (c Command) String() string {
	return c.Line
}

// NewCommand creates an acknowledged command from a raw line.
func NewCommand(line string) Command {
	return Command{Line: line, Ack: AckRequired}
}

// DownloadMode puts the loader into download mode at addr.
func DownloadMode(addr uint16) Command {
	return NewCommand(fmt.Sprintf("%s%04X", CmdDownloadMode, addr))
}

// UploadMode puts the loader into upload mode at addr.
func UploadMode(addr uint16) Command {
	return NewCommand(fmt.Sprintf("%s%04X", CmdUploadMode, addr))
}

// Reset resets the 1802.
func Reset() Command {
	return NewCommand(CmdReset)
}

// Run starts or continues program execution.
func Run() Command {
	return NewCommand(CmdRun)
}

// ReadRequest asks the loader for count bytes. The response is read by the
// caller, so the command is not acknowledged.
func ReadRequest(count int) (Command, error) {
	if count < 1 || count > MaxHexPairs {
		return Command{}, fmt.Errorf("read request of %d bytes outside 1..%d", count, MaxHexPairs)
	}
	return Command{Line: fmt.Sprintf("%s%d", CmdReadRequest, count), Ack: NoAck}, nil
}

// DataLine encodes up to MaxHexPairs bytes as an acknowledged data line.
func DataLine(data []byte) (Command, error) {
	if len(data) == 0 {
		return Command{}, fmt.Errorf("empty data line")
	}
	if len(data) > MaxHexPairs {
		return Command{}, fmt.Errorf("data line of %d bytes exceeds %d", len(data), MaxHexPairs)
	}
	var sb strings.Builder
	sb.Grow(len(data) * 2)
	for _, b := range data {
		fmt.Fprintf(&sb, "%02X", b)
	}
	return NewCommand(sb.String()), nil
}

// CalculateDataLines returns the number of data lines needed for size bytes.
func CalculateDataLines(size int) int {
	return (size + MaxHexPairs - 1) / MaxHexPairs
}
