package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is the speed of the Arduino loader sketch.
const DefaultBaudRate = 19200

// ErrClosed is returned for I/O on a port that is not open.
var ErrClosed = errors.New("serial port is not open")

// Settings configures an opened port.
type Settings struct {
	BaudRate int

	// ReadTimeout bounds every ReadBytes call.
	ReadTimeout time.Duration

	// SettleDelay is waited after opening, while the Arduino resets and
	// starts the loader.
	SettleDelay time.Duration
}

// DefaultSettings returns the settings used by the loader firmware.
func DefaultSettings() Settings {
	return Settings{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: 5 * time.Second,
		SettleDelay: 2 * time.Second,
	}
}

// OpenError indicates that a port could not be opened.
type OpenError struct {
	Port string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("unable to open serial port '%s': %v", e.Port, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// device is the part of serial.Port used here.
type device interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Port wraps a serial port connected to the loader.
type Port struct {
	port        device
	portName    string
	baudRate    int
	readTimeout time.Duration
}

// Open opens a serial port and waits for the attached board to settle.
func Open(portName string, settings Settings) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: settings.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, &OpenError{Port: portName, Err: err}
	}

	if err := port.SetReadTimeout(settings.ReadTimeout); err != nil {
		port.Close()
		return nil, &OpenError{Port: portName, Err: fmt.Errorf("failed to set read timeout: %w", err)}
	}

	// Opening the port resets the Arduino.
	time.Sleep(settings.SettleDelay)

	return newPort(port, portName, settings), nil
}

func newPort(dev device, portName string, settings Settings) *Port {
	return &Port{
		port:        dev,
		portName:    portName,
		baudRate:    settings.BaudRate,
		readTimeout: settings.ReadTimeout,
	}
}

// Close closes the serial port. It is safe to call more than once.
func (p *Port) Close() error {
	if p == nil || p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	return err
}

// Write writes all of data to the serial port.
func (p *Port) Write(data []byte) (int, error) {
	if p == nil || p.port == nil {
		return 0, ErrClosed
	}
	written := 0
	for written < len(data) {
		n, err := p.port.Write(data[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// ReadBytes reads up to n bytes, returning early when the read timeout
// expires. A short or empty result means the timeout was hit.
func (p *Port) ReadBytes(n int) ([]byte, error) {
	if p == nil || p.port == nil {
		return nil, ErrClosed
	}

	result := make([]byte, 0, n)
	buf := make([]byte, n)
	deadline := time.Now().Add(p.readTimeout)

	for len(result) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := p.port.SetReadTimeout(remaining); err != nil {
			return result, err
		}

		k, err := p.port.Read(buf[:n-len(result)])
		if k > 0 {
			result = append(result, buf[:k]...)
		}
		if err != nil {
			return result, err
		}
		if k == 0 {
			break
		}
	}

	return result, nil
}

// Flush discards any buffered input.
func (p *Port) Flush() error {
	if p == nil || p.port == nil {
		return ErrClosed
	}
	return p.port.ResetInputBuffer()
}

// PortName returns the port name.
func (p *Port) PortName() string {
	return p.portName
}

// BaudRate returns the current baud rate.
func (p *Port) BaudRate() int {
	return p.baudRate
}

// PortInfo describes an available serial port.
type PortInfo struct {
	Name        string
	Description string
	HWID        string
}

// ListPorts returns the available serial ports.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, describePort(d))
	}
	return ports, nil
}

func describePort(d *enumerator.PortDetails) PortInfo {
	info := PortInfo{Name: d.Name, Description: "n/a", HWID: "n/a"}
	if d.Product != "" {
		info.Description = d.Product
	}
	if d.IsUSB {
		info.HWID = fmt.Sprintf("USB VID:PID=%s:%s", d.VID, d.PID)
		if d.SerialNumber != "" {
			info.HWID += " SER=" + d.SerialNumber
		}
	}
	return info
}
