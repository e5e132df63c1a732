package terminal

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bigbag/mcard-loader/internal/channel"
)

type mockLink struct {
	input   []byte
	written bytes.Buffer
	reads   []int
}

func (m *mockLink) Write(p []byte) (int, error) {
	return m.written.Write(p)
}

func (m *mockLink) ReadBytes(n int) ([]byte, error) {
	m.reads = append(m.reads, n)
	if n > len(m.input) {
		n = len(m.input)
	}
	out := m.input[:n]
	m.input = m.input[n:]
	return out, nil
}

func newTestTerminal(response string) (*Terminal, *mockLink, *bytes.Buffer, *[]string) {
	link := &mockLink{input: []byte(response)}
	out := &bytes.Buffer{}
	var downloads []string
	download := func(path string) error {
		downloads = append(downloads, path)
		return nil
	}
	term := New(channel.New(link), download, out, zerolog.Nop())
	return term, link, out, &downloads
}

func TestExecute_QuietAck(t *testing.T) {
	term, link, out, _ := newTestTerminal("!")

	quit, err := term.Execute("*R")
	if err != nil || quit {
		t.Fatalf("Execute() = %v, %v", quit, err)
	}
	if link.written.String() != "*R\n" {
		t.Errorf("written = %q, want %q", link.written.String(), "*R\n")
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing", out.String())
	}
}

func TestExecute_Error(t *testing.T) {
	term, _, out, _ := newTestTerminal("#")

	if _, err := term.Execute("*Q"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if out.String() != "ERROR\n" {
		t.Errorf("output = %q, want %q", out.String(), "ERROR\n")
	}
}

func TestExecute_NoResponse(t *testing.T) {
	term, _, out, _ := newTestTerminal("")

	if _, err := term.Execute("*C"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if out.String() != "*** No response to command\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestExecute_ReadRequestStopsAtExpectedLength(t *testing.T) {
	term, link, out, _ := newTestTerminal("7A7B30!")

	if _, err := term.Execute("<3"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if out.String() != "7A7B30\n" {
		t.Errorf("output = %q, want %q", out.String(), "7A7B30\n")
	}
	if len(link.reads) != 2 || link.reads[1] != 5 {
		t.Errorf("reads = %v, want [1 5]", link.reads)
	}
	if string(link.input) != "!" {
		t.Errorf("unread input = %q, want %q", link.input, "!")
	}
}

func TestExecute_FreeFormResponse(t *testing.T) {
	term, _, out, _ := newTestTerminal("Loader v1.2")

	if _, err := term.Execute("?"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if out.String() != "Loader v1.2\n" {
		t.Errorf("output = %q, want %q", out.String(), "Loader v1.2\n")
	}
}

func TestExecute_Quit(t *testing.T) {
	for _, input := range []string{"q", "x", "quit", "exit"} {
		term, link, _, _ := newTestTerminal("")
		quit, err := term.Execute(input)
		if err != nil || !quit {
			t.Errorf("Execute(%q) = %v, %v, want quit", input, quit, err)
		}
		if link.written.Len() != 0 {
			t.Errorf("Execute(%q) wrote %q", input, link.written.String())
		}
	}
}

func TestExecute_Empty(t *testing.T) {
	term, link, _, _ := newTestTerminal("")
	quit, err := term.Execute("")
	if err != nil || quit {
		t.Errorf("Execute(\"\") = %v, %v", quit, err)
	}
	if link.written.Len() != 0 {
		t.Error("empty line was sent")
	}
}

func TestExecute_Download(t *testing.T) {
	term, link, _, downloads := newTestTerminal("")

	if _, err := term.Execute("@test.hex"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(*downloads) != 1 || (*downloads)[0] != "test.hex" {
		t.Errorf("downloads = %v, want [test.hex]", *downloads)
	}
	if link.written.Len() != 0 {
		t.Errorf("@ line was sent to the device: %q", link.written.String())
	}
}

func TestExecute_DownloadError(t *testing.T) {
	link := &mockLink{}
	failure := errors.New("boom")
	term := New(channel.New(link), func(string) error { return failure }, &bytes.Buffer{}, zerolog.Nop())

	if _, err := term.Execute("@x.bin"); !errors.Is(err, failure) {
		t.Errorf("Execute() error = %v, want %v", err, failure)
	}
}

func TestExecute_DownloadNoName(t *testing.T) {
	term, _, out, downloads := newTestTerminal("")
	if _, err := term.Execute("@"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(*downloads) != 0 {
		t.Errorf("downloads = %v, want none", *downloads)
	}
	if out.String() != "*** No file name given\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestExpectedLength(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"<16", 32},
		{"<1", 2},
		{"< 4", 8},
		{"<", 0},
		{"<x", 0},
		{"<0", 0},
		{"*D0000", 0},
	}

	for _, tc := range tests {
		if got := expectedLength(tc.input); got != tc.expected {
			t.Errorf("expectedLength(%q) = %d, want %d", tc.input, got, tc.expected)
		}
	}
}
