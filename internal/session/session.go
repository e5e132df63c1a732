// Package session holds the state of one loader invocation: the options and
// the serial link, which is opened on first use and closed once at the end.
package session

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/bigbag/mcard-loader/internal/channel"
	"github.com/bigbag/mcard-loader/internal/detect"
	"github.com/bigbag/mcard-loader/internal/loader"
	"github.com/bigbag/mcard-loader/internal/serial"
)

// Config holds the options of one run.
type Config struct {
	// Port is the serial port; empty means pick one automatically.
	Port     string
	BaudRate int

	AckTimeout   time.Duration
	SettleDelay  time.Duration
	CommandDelay time.Duration

	// DryRun simulates every command without opening the port.
	DryRun bool
}

// DefaultConfig returns the defaults of the loader firmware.
func DefaultConfig() Config {
	s := serial.DefaultSettings()
	return Config{
		BaudRate:    s.BaudRate,
		AckTimeout:  s.ReadTimeout,
		SettleDelay: s.SettleDelay,
	}
}

// Link is an open connection to the loader.
type Link interface {
	channel.Link
	io.Closer
}

// Opener opens the named port.
type Opener func(portName string, settings serial.Settings) (Link, error)

func openSerial(portName string, settings serial.Settings) (Link, error) {
	port, err := serial.Open(portName, settings)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Session owns the link for the duration of a run.
type Session struct {
	cfg    Config
	log    zerolog.Logger
	open   Opener
	pick   func() (string, error)
	link   Link
	ch     *channel.Channel
	loader *loader.Loader
	closed bool
}

// New creates a session. Nothing is opened until a command needs the link.
func New(cfg Config, log zerolog.Logger) *Session {
	return &Session{
		cfg:  cfg,
		log:  log,
		open: openSerial,
		pick: detect.AutoSelect,
	}
}

// Config returns the session options.
func (s *Session) Config() Config {
	return s.cfg
}

// DryRun reports whether I/O is simulated.
func (s *Session) DryRun() bool {
	return s.cfg.DryRun
}

// Channel returns the command channel, opening the port if it is not open
// yet. In a dry run the channel simulates and no port is opened.
func (s *Session) Channel() (*channel.Channel, error) {
	if s.ch != nil {
		return s.ch, nil
	}
	if s.closed {
		return nil, fmt.Errorf("session already closed")
	}

	opts := []channel.Option{
		channel.WithCommandDelay(s.cfg.CommandDelay),
		channel.WithLogger(s.log),
	}

	if s.cfg.DryRun {
		s.ch = channel.New(nil, append(opts, channel.WithSimulate(true))...)
		return s.ch, nil
	}

	if err := s.openLink(); err != nil {
		return nil, err
	}
	s.ch = channel.New(s.link, opts...)
	return s.ch, nil
}

func (s *Session) openLink() error {
	portName := s.cfg.Port
	if portName == "" {
		name, err := s.pick()
		if err != nil {
			return fmt.Errorf("unable to automatically choose a port: %w", err)
		}
		portName = name
	}

	settings := serial.Settings{
		BaudRate:    s.cfg.BaudRate,
		ReadTimeout: s.cfg.AckTimeout,
		SettleDelay: s.cfg.SettleDelay,
	}
	link, err := s.open(portName, settings)
	if err != nil {
		return err
	}

	s.link = link
	s.log.Info().Msgf("Serial port open: '%s'", portName)
	return nil
}

// Loader returns the loader bound to the session channel.
func (s *Session) Loader() (*loader.Loader, error) {
	if s.loader != nil {
		return s.loader, nil
	}
	ch, err := s.Channel()
	if err != nil {
		return nil, err
	}
	s.loader = loader.New(ch, s.log)
	return s.loader, nil
}

// Close closes the link if it was opened. Later calls do nothing.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.ch = nil
	s.loader = nil

	if s.link == nil {
		return nil
	}
	err := s.link.Close()
	s.link = nil
	s.log.Debug().Msg("Serial port closed")
	return err
}
