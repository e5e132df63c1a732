package protocol

import "fmt"

// AckTimeoutError indicates that no valid acknowledgement followed a command.
type AckTimeoutError struct {
	Command string
}

func (e *AckTimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for ACK of command '%s'", e.Command)
}

// DeviceError indicates that the loader answered a command with an error byte.
type DeviceError struct {
	Command string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("error returned for command '%s'", e.Command)
}

// MalformedByteError indicates a short or non-hex byte read.
type MalformedByteError struct {
	Raw []byte
}

func (e *MalformedByteError) Error() string {
	if len(e.Raw) == 0 {
		return "no data received for byte read"
	}
	return fmt.Sprintf("malformed byte read: %q", e.Raw)
}
