package loader

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bigbag/mcard-loader/internal/channel"
	"github.com/bigbag/mcard-loader/internal/protocol"
)

// ProgressCallback is called to report transfer progress in lines.
type ProgressCallback func(current, total int)

// Result summarizes a completed transfer.
type Result struct {
	Bytes   int
	Lines   int
	Elapsed time.Duration
}

// AddressRangeError indicates a transfer outside the 1802 address space.
type AddressRangeError struct {
	Address uint32
	Size    int
}

func (e *AddressRangeError) Error() string {
	if e.Size == 0 {
		return fmt.Sprintf("address 0x%X is outside 0x0000-0x%04X", e.Address, protocol.MaxAddress)
	}
	return fmt.Sprintf("%d bytes at 0x%04X do not fit below 0x%04X", e.Size, e.Address, protocol.MaxAddress)
}

// Loader drives the loader firmware: mode switches, reset/run and chunked
// transfers in both directions.
type Loader struct {
	ch       *channel.Channel
	log      zerolog.Logger
	progress ProgressCallback
	now      func() time.Time
}

// New creates a Loader on the given channel.
func New(ch *channel.Channel, log zerolog.Logger) *Loader {
	return &Loader{
		ch:  ch,
		log: log,
		now: time.Now,
	}
}

// SetProgressCallback sets the progress callback function.
func (l *Loader) SetProgressCallback(cb ProgressCallback) {
	l.progress = cb
}

// reportProgress calls the progress callback if set.
func (l *Loader) reportProgress(current, total int) {
	if l.progress != nil {
		l.progress(current, total)
	}
}

func deviceAddress(addr uint32) (uint16, error) {
	if addr > protocol.MaxAddress {
		return 0, &AddressRangeError{Address: addr}
	}
	return uint16(addr), nil
}

func checkRange(addr uint32, size int) error {
	if addr > protocol.MaxAddress {
		return &AddressRangeError{Address: addr}
	}
	if uint64(addr)+uint64(size) > protocol.MaxAddress+1 {
		return &AddressRangeError{Address: addr, Size: size}
	}
	return nil
}

// EnterDownloadMode prepares the loader to receive data at addr.
func (l *Loader) EnterDownloadMode(addr uint32) error {
	a, err := deviceAddress(addr)
	if err != nil {
		return err
	}
	l.log.Info().Msgf("Download mode at 0x%04X", a)
	return l.ch.Send(protocol.DownloadMode(a))
}

// EnterUploadMode prepares the loader to send data from addr.
func (l *Loader) EnterUploadMode(addr uint32) error {
	a, err := deviceAddress(addr)
	if err != nil {
		return err
	}
	l.log.Info().Msgf("Upload mode at 0x%04X", a)
	return l.ch.Send(protocol.UploadMode(a))
}

// Reset resets the 1802.
func (l *Loader) Reset() error {
	l.log.Info().Msg("Reset mode")
	return l.ch.Send(protocol.Reset())
}

// Run starts or continues program execution.
func (l *Loader) Run() error {
	l.log.Info().Msg("Run mode")
	return l.ch.Send(protocol.Run())
}

// RunProgram resets the 1802 and starts the program from the beginning.
func (l *Loader) RunProgram() error {
	if err := l.Reset(); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	if err := l.Run(); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}
