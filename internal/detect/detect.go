package detect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bigbag/mcard-loader/internal/serial"
)

// ErrPortNotFound is returned when no usable serial port exists.
var ErrPortNotFound = errors.New("no serial ports found")

// AmbiguousPortError is returned when more than one usable port exists and
// the caller has to choose.
type AmbiguousPortError struct {
	Candidates []string
}

func (e *AmbiguousPortError) Error() string {
	return fmt.Sprintf("too many serial ports (%s), select one with --port", strings.Join(e.Candidates, ", "))
}

// ignored reports whether a port can never be the loader.
func ignored(name string) bool {
	return strings.Contains(name, "Bluetooth")
}

// PickPort returns the only usable port among ports. Bluetooth ports are
// skipped.
func PickPort(ports []serial.PortInfo) (string, error) {
	var candidates []string
	for _, p := range ports {
		if ignored(p.Name) {
			continue
		}
		candidates = append(candidates, p.Name)
	}

	switch len(candidates) {
	case 0:
		return "", ErrPortNotFound
	case 1:
		return candidates[0], nil
	default:
		return "", &AmbiguousPortError{Candidates: candidates}
	}
}

// AutoSelect lists the serial ports and picks the loader port.
func AutoSelect() (string, error) {
	ports, err := serial.ListPorts()
	if err != nil {
		return "", err
	}
	return PickPort(ports)
}
