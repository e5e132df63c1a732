package protocol

import "fmt"

// Ack is the outcome of an acknowledged command.
type Ack int

const (
	AckSuccess Ack = iota
	AckFailure
	AckTimeout
)

// String returns a human-readable ack name.
func (a Ack) String() string {
	switch a {
	case AckSuccess:
		return "success"
	case AckFailure:
		return "failure"
	case AckTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("Ack(%d)", int(a))
	}
}

// ParseAck classifies the bytes read after a command. Anything other than a
// single ack or error byte, including an empty read, counts as a timeout.
func ParseAck(resp []byte) Ack {
	if len(resp) != 1 {
		return AckTimeout
	}
	switch resp[0] {
	case AckByte:
		return AckSuccess
	case ErrorByte:
		return AckFailure
	default:
		return AckTimeout
	}
}

// ParseHexByte parses two ASCII hex characters into one byte.
func ParseHexByte(raw []byte) (byte, error) {
	if len(raw) != 2 {
		return 0, &MalformedByteError{Raw: raw}
	}
	hi, ok1 := hexNibble(raw[0])
	lo, ok2 := hexNibble(raw[1])
	if !ok1 || !ok2 {
		return 0, &MalformedByteError{Raw: raw}
	}
	return hi<<4 | lo, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
