// Package channel sends line commands to the loader firmware and interprets
// its single-byte acknowledgements.
package channel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bigbag/mcard-loader/internal/protocol"
)

// ErrSimulated is returned for reads while simulating, since no device
// is attached.
var ErrSimulated = errors.New("no device data in simulate mode")

// Link is the byte transport under the channel.
type Link interface {
	Write(data []byte) (int, error)

	// ReadBytes returns up to n bytes; fewer means the read timed out.
	ReadBytes(n int) ([]byte, error)
}

// Channel sends commands over a Link, one at a time.
type Channel struct {
	link     Link
	delay    time.Duration
	simulate bool
	log      zerolog.Logger
	sleep    func(time.Duration)
}

// Option configures a Channel.
type Option func(*Channel)

// WithCommandDelay waits d after every command, for slow targets.
func WithCommandDelay(d time.Duration) Option {
	return func(c *Channel) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithSimulate turns every send into a no-op. The link may be nil.
func WithSimulate(simulate bool) Option {
	return func(c *Channel) {
		c.simulate = simulate
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Channel) {
		c.log = log
	}
}

// New creates a channel on link.
func New(link Link, opts ...Option) *Channel {
	c := &Channel{
		link:  link,
		log:   zerolog.Nop(),
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.link == nil && !c.simulate {
		panic("link cannot be nil unless simulating")
	}
	return c
}

// Simulating reports whether the channel performs no I/O.
func (c *Channel) Simulating() bool {
	return c.simulate
}

// Send writes cmd followed by a newline. For acknowledged commands it reads
// one byte and maps it to success, a DeviceError or an AckTimeoutError.
func (c *Channel) Send(cmd protocol.Command) error {
	if strings.ContainsAny(cmd.Line, "\r\n") {
		return fmt.Errorf("command %q contains a line break", cmd.Line)
	}

	c.log.Debug().Str("command", cmd.Line).Stringer("mode", cmd.Ack).Msg("send command")
	if c.simulate {
		return nil
	}

	if _, err := c.link.Write(cmd.Encode()); err != nil {
		return fmt.Errorf("failed to send command '%s': %w", cmd.Line, err)
	}

	if cmd.Ack == protocol.AckRequired {
		resp, err := c.link.ReadBytes(1)
		if err != nil {
			return fmt.Errorf("failed to read ACK of command '%s': %w", cmd.Line, err)
		}
		switch protocol.ParseAck(resp) {
		case protocol.AckSuccess:
		case protocol.AckFailure:
			return &protocol.DeviceError{Command: cmd.Line}
		case protocol.AckTimeout:
			return &protocol.AckTimeoutError{Command: cmd.Line}
		}
	}

	if c.delay > 0 {
		c.sleep(c.delay)
	}
	return nil
}

// SendLine sends a raw line with the given ack mode.
func (c *Channel) SendLine(line string, mode protocol.AckMode) error {
	return c.Send(protocol.Command{Line: line, Ack: mode})
}

// ReadByte reads one byte sent as two ASCII hex characters.
func (c *Channel) ReadByte() (byte, error) {
	if c.simulate {
		return 0, ErrSimulated
	}
	raw, err := c.link.ReadBytes(2)
	if err != nil {
		return 0, fmt.Errorf("failed to read byte: %w", err)
	}
	b, err := protocol.ParseHexByte(raw)
	if err != nil {
		return 0, err
	}
	c.log.Trace().Msgf("received byte: 0x%02X", b)
	return b, nil
}

// ReadRaw returns up to n bytes exactly as received.
func (c *Channel) ReadRaw(n int) ([]byte, error) {
	if c.simulate {
		return nil, ErrSimulated
	}
	return c.link.ReadBytes(n)
}
