// Package terminal implements an interactive pass-through to the loader
// firmware. Lines typed by the user are sent as-is and the raw response is
// echoed back.
package terminal

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/bigbag/mcard-loader/internal/channel"
	"github.com/bigbag/mcard-loader/internal/protocol"
)

const banner = `1802 Membership Card Loader Terminal Mode
Enter an 'x' or 'q' followed by Enter to quit.
All commands that are understood by the Arduino 1802 Loader can be entered.
In addition, you can download a file to the 1802 by using the '@<filename>' command.
(e.g.  >@test.hex)`

// DownloadFunc downloads the named file to the 1802.
type DownloadFunc func(path string) error

// Terminal is an interactive session on an open channel.
type Terminal struct {
	ch       *channel.Channel
	download DownloadFunc
	out      io.Writer
	log      zerolog.Logger
}

// New creates a terminal writing responses to out.
func New(ch *channel.Channel, download DownloadFunc, out io.Writer, log zerolog.Logger) *Terminal {
	return &Terminal{
		ch:       ch,
		download: download,
		out:      out,
		log:      log,
	}
}

// Run prompts for lines until the user quits or input ends.
func (t *Terminal) Run() error {
	fmt.Fprintln(t.out, banner)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(">")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(t.out)
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input != "" {
			line.AppendHistory(input)
		}

		quit, err := t.Execute(input)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// Execute handles one input line and reports whether the user asked to quit.
func (t *Terminal) Execute(input string) (bool, error) {
	t.log.Debug().Msgf("Line '%s' length %d", input, len(input))

	switch {
	case input == "":
		return false, nil
	case input[0] == 'x' || input[0] == 'q':
		return true, nil
	case input[0] == '@':
		path := strings.TrimSpace(input[1:])
		if path == "" {
			fmt.Fprintln(t.out, "*** No file name given")
			return false, nil
		}
		return false, t.download(path)
	}

	if err := t.ch.SendLine(input, protocol.NoAck); err != nil {
		return false, err
	}
	return false, t.echoResponse(input)
}

// echoResponse prints whatever the firmware answers. A lone ack is quiet;
// other output is read until the expected length or a timeout.
func (t *Terminal) echoResponse(input string) error {
	first, err := t.ch.ReadRaw(1)
	if err != nil {
		return err
	}
	if len(first) == 0 {
		fmt.Fprintln(t.out, "*** No response to command")
		return nil
	}

	switch protocol.ParseAck(first) {
	case protocol.AckSuccess:
		t.log.Debug().Msg("Got bang")
		return nil
	case protocol.AckFailure:
		fmt.Fprintln(t.out, "ERROR")
		return nil
	}

	t.out.Write(first)

	if expect := expectedLength(input); expect > 0 {
		rest, err := t.ch.ReadRaw(expect - 1)
		if err != nil {
			return err
		}
		t.out.Write(rest)
		fmt.Fprintln(t.out)
		return nil
	}

	for {
		c, err := t.ch.ReadRaw(1)
		if err != nil {
			return err
		}
		if len(c) == 0 {
			break
		}
		t.out.Write(c)
	}
	fmt.Fprintln(t.out)
	return nil
}

// expectedLength returns the number of characters answered to a read
// request, or 0 when the line is not one.
func expectedLength(input string) int {
	if !strings.HasPrefix(input, protocol.CmdReadRequest) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(input[len(protocol.CmdReadRequest):]))
	if err != nil || n <= 0 {
		return 0
	}
	return n * 2
}
