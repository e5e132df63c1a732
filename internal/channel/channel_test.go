package channel

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bigbag/mcard-loader/internal/protocol"
)

// MockLink replays a fixed response stream and records writes.
type MockLink struct {
	input    []byte
	written  bytes.Buffer
	reads    []int
	readErr  error
	writeErr error
}

func NewMockLink(input string) *MockLink {
	return &MockLink{input: []byte(input)}
}

func (m *MockLink) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.written.Write(p)
}

func (m *MockLink) ReadBytes(n int) ([]byte, error) {
	m.reads = append(m.reads, n)
	if m.readErr != nil {
		return nil, m.readErr
	}
	if n > len(m.input) {
		n = len(m.input)
	}
	out := m.input[:n]
	m.input = m.input[n:]
	return out, nil
}

func TestSend_AckSuccess(t *testing.T) {
	link := NewMockLink("!")
	c := New(link)

	if err := c.Send(protocol.DownloadMode(0x0100)); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if link.written.String() != "*D0100\n" {
		t.Errorf("written = %q, want %q", link.written.String(), "*D0100\n")
	}
	if len(link.reads) != 1 || link.reads[0] != 1 {
		t.Errorf("reads = %v, want one read of 1 byte", link.reads)
	}
}

func TestSend_DeviceError(t *testing.T) {
	c := New(NewMockLink("#"))

	err := c.Send(protocol.Run())
	var devErr *protocol.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("Send() error = %v, want DeviceError", err)
	}
	if devErr.Command != "*R" {
		t.Errorf("DeviceError.Command = %q, want %q", devErr.Command, "*R")
	}
}

func TestSend_AckTimeout(t *testing.T) {
	for _, input := range []string{"", "x", "7"} {
		c := New(NewMockLink(input))

		err := c.Send(protocol.Reset())
		var timeout *protocol.AckTimeoutError
		if !errors.As(err, &timeout) {
			t.Errorf("input %q: Send() error = %v, want AckTimeoutError", input, err)
			continue
		}
		if timeout.Command != "*C" {
			t.Errorf("AckTimeoutError.Command = %q, want %q", timeout.Command, "*C")
		}
	}
}

func TestSend_NoAckDoesNotRead(t *testing.T) {
	link := NewMockLink("7A")
	c := New(link)

	cmd, _ := protocol.ReadRequest(1)
	if err := c.Send(cmd); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if len(link.reads) != 0 {
		t.Errorf("NoAck send performed %d reads", len(link.reads))
	}
	if link.written.String() != "<1\n" {
		t.Errorf("written = %q, want %q", link.written.String(), "<1\n")
	}
}

func TestSend_WriteError(t *testing.T) {
	link := NewMockLink("!")
	link.writeErr = io.ErrClosedPipe
	c := New(link)

	if err := c.Send(protocol.Run()); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Send() error = %v, want %v", err, io.ErrClosedPipe)
	}
}

func TestSend_ReadError(t *testing.T) {
	link := NewMockLink("")
	link.readErr = io.ErrUnexpectedEOF
	c := New(link)

	if err := c.Send(protocol.Run()); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Send() error = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestSend_RejectsLineBreaks(t *testing.T) {
	link := NewMockLink("!")
	c := New(link)

	if err := c.SendLine("*R\n*C", protocol.AckRequired); err == nil {
		t.Error("SendLine() with embedded newline should fail")
	}
	if link.written.Len() != 0 {
		t.Errorf("written = %q, want nothing", link.written.String())
	}
}

func TestSend_CommandDelay(t *testing.T) {
	link := NewMockLink("!!")
	c := New(link, WithCommandDelay(50*time.Millisecond))

	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	c.Send(protocol.Reset())
	c.Send(protocol.Run())

	if len(slept) != 2 || slept[0] != 50*time.Millisecond {
		t.Errorf("slept = %v, want two 50ms delays", slept)
	}
}

func TestSend_NoDelayByDefault(t *testing.T) {
	c := New(NewMockLink("!"))
	c.sleep = func(d time.Duration) { t.Errorf("unexpected sleep of %v", d) }
	c.Send(protocol.Run())
}

func TestSimulate(t *testing.T) {
	c := New(nil, WithSimulate(true))
	if !c.Simulating() {
		t.Error("Simulating() = false, want true")
	}

	if err := c.Send(protocol.DownloadMode(0)); err != nil {
		t.Errorf("Send() in simulate mode error: %v", err)
	}
	if _, err := c.ReadByte(); !errors.Is(err, ErrSimulated) {
		t.Errorf("ReadByte() error = %v, want ErrSimulated", err)
	}
	if _, err := c.ReadRaw(1); !errors.Is(err, ErrSimulated) {
		t.Errorf("ReadRaw() error = %v, want ErrSimulated", err)
	}
}

func TestSimulate_NoIOOnLink(t *testing.T) {
	link := NewMockLink("")
	c := New(link, WithSimulate(true))

	c.Send(protocol.Run())
	if link.written.Len() != 0 || len(link.reads) != 0 {
		t.Error("simulated send touched the link")
	}
}

func TestNew_NilLinkPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(nil) should panic")
		}
	}()
	New(nil)
}

func TestReadByte(t *testing.T) {
	link := NewMockLink("7a0F")
	c := New(link)

	b, err := c.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte() error: %v", err)
	}
	if b != 0x7A {
		t.Errorf("ReadByte() = 0x%02X, want 0x7A", b)
	}
	b, _ = c.ReadByte()
	if b != 0x0F {
		t.Errorf("ReadByte() = 0x%02X, want 0x0F", b)
	}
	if link.reads[0] != 2 {
		t.Errorf("ReadByte() requested %d bytes, want 2", link.reads[0])
	}
}

func TestReadByte_Malformed(t *testing.T) {
	for _, input := range []string{"", "A", "ZZ", "#!"} {
		c := New(NewMockLink(input))
		_, err := c.ReadByte()
		var malformed *protocol.MalformedByteError
		if !errors.As(err, &malformed) {
			t.Errorf("input %q: ReadByte() error = %v, want MalformedByteError", input, err)
		}
	}
}

func TestReadRaw(t *testing.T) {
	c := New(NewMockLink("hello"))
	got, err := c.ReadRaw(10)
	if err != nil {
		t.Fatalf("ReadRaw() error: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("ReadRaw() = %q, want %q", got, "hello")
	}
}
