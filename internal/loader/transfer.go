package loader

import (
	"fmt"
	"time"

	"github.com/bigbag/mcard-loader/internal/image"
	"github.com/bigbag/mcard-loader/internal/protocol"
)

// transfer is the bookkeeping for one download or upload.
type transfer struct {
	address   uint32
	remaining int
	done      int
	lines     int
	started   time.Time
}

// next returns the size of the next chunk.
func (t *transfer) next() int {
	return min(t.remaining, protocol.MaxHexPairs)
}

func (t *transfer) advance(n int) {
	t.address += uint32(n)
	t.remaining -= n
	t.done += n
	t.lines++
}

// Download writes the image to the 1802 starting at addr. The image is sent
// as its flat binary span, 16 bytes per acknowledged data line.
func (l *Loader) Download(img *image.Image, addr uint32) (*Result, error) {
	data := img.Bytes()
	if err := checkRange(addr, len(data)); err != nil {
		return nil, err
	}

	t := &transfer{address: addr, remaining: len(data), started: l.now()}
	totalLines := protocol.CalculateDataLines(len(data))

	if err := l.EnterDownloadMode(addr); err != nil {
		return nil, fmt.Errorf("failed to enter download mode: %w", err)
	}

	for t.remaining > 0 {
		n := t.next()
		cmd, err := protocol.DataLine(data[t.done : t.done+n])
		if err != nil {
			return nil, err
		}
		if err := l.ch.Send(cmd); err != nil {
			return nil, fmt.Errorf("data line %d at 0x%04X failed: %w", t.lines+1, t.address, err)
		}
		t.advance(n)
		l.reportProgress(t.lines, totalLines)
	}

	result := &Result{Bytes: t.done, Lines: t.lines, Elapsed: l.now().Sub(t.started)}
	l.log.Info().Msgf("Download done, %d bytes in %.1f seconds.", result.Bytes, result.Elapsed.Seconds())
	return result, nil
}

// Upload reads size bytes from the 1802 starting at addr. The returned image
// starts at address 0 regardless of addr.
func (l *Loader) Upload(addr uint32, size int) (*image.Image, *Result, error) {
	if size < 0 {
		return nil, nil, fmt.Errorf("invalid upload size %d", size)
	}
	if err := checkRange(addr, size); err != nil {
		return nil, nil, err
	}

	t := &transfer{address: addr, remaining: size, started: l.now()}
	totalRequests := protocol.CalculateDataLines(size)

	if err := l.EnterUploadMode(addr); err != nil {
		return nil, nil, fmt.Errorf("failed to enter upload mode: %w", err)
	}

	data := make([]byte, 0, size)
	for t.remaining > 0 {
		n := t.next()
		chunk, err := l.readData(n)
		if err != nil {
			return nil, nil, fmt.Errorf("read of %d bytes at 0x%04X failed: %w", n, t.address, err)
		}
		data = append(data, chunk...)
		t.advance(n)
		l.reportProgress(t.lines, totalRequests)
	}

	img, err := image.FromBytes(data)
	if err != nil {
		return nil, nil, err
	}

	result := &Result{Bytes: t.done, Lines: t.lines, Elapsed: l.now().Sub(t.started)}
	l.log.Info().Msgf("Upload done, %d bytes in %.1f seconds.", result.Bytes, result.Elapsed.Seconds())
	return img, result, nil
}

// readData requests count bytes and reads them back as hex pairs.
func (l *Loader) readData(count int) ([]byte, error) {
	cmd, err := protocol.ReadRequest(count)
	if err != nil {
		return nil, err
	}
	if err := l.ch.Send(cmd); err != nil {
		return nil, err
	}

	data := make([]byte, 0, count)
	for i := 0; i < count; i++ {
		b, err := l.ch.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)
	}
	return data, nil
}
