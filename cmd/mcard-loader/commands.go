package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/mcard-loader/internal/image"
	"github.com/bigbag/mcard-loader/internal/loader"
	"github.com/bigbag/mcard-loader/internal/protocol"
	"github.com/bigbag/mcard-loader/internal/session"
	"github.com/bigbag/mcard-loader/internal/terminal"
)

func newProgressBar(description string, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// trackProgress hooks a progress bar to the loader. The returned function
// finishes the bar.
func trackProgress(l *loader.Loader, description string, total int) func() {
	if total == 0 {
		l.SetProgressCallback(nil)
		return func() {}
	}
	bar := newProgressBar(description, total)
	l.SetProgressCallback(func(current, _ int) {
		bar.Set(current)
	})
	return func() {
		bar.Finish()
		l.SetProgressCallback(nil)
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	sess, _ := newSession()
	defer sess.Close()

	addrSet := cmd.Flags().Changed("addr")
	if err := downloadFile(sess, args[0], addrFlag, addrSet, dumpFlag); err != nil {
		return err
	}

	if runFlag {
		if err := runProgram(sess); err != nil {
			return err
		}
	}
	return nil
}

// downloadFile imports path and sends it to the 1802. Unless addrSet, the
// image is loaded at its lowest address.
func downloadFile(sess *session.Session, path string, addr uint32, addrSet, dump bool) error {
	img, format, err := image.ReadFile(path)
	if err != nil {
		return err
	}
	if !addrSet {
		addr = img.MinAddress()
	}

	fmt.Printf("File: %s (%s, %d bytes)\n", path, format, img.Span())
	if img.HasGaps() {
		fmt.Printf("Gaps between 0x%04X and 0x%04X are filled with zeros\n", img.MinAddress(), img.MaxAddress())
	}

	if dump {
		if err := img.Render(os.Stdout, image.FormatHex); err != nil {
			return err
		}
	}

	l, err := sess.Loader()
	if err != nil {
		return err
	}

	finish := trackProgress(l, "Downloading", protocol.CalculateDataLines(img.Span()))
	result, err := l.Download(img, addr)
	finish()
	if err != nil {
		return err
	}

	fmt.Printf("Downloaded %d bytes to 0x%04X in %d lines (%.1fs)\n",
		result.Bytes, addr, result.Lines, result.Elapsed.Seconds())
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]

	format, err := image.ParseExportFormat(formatFlag)
	if err != nil {
		return err
	}

	sess, log := newSession()
	defer sess.Close()

	if sess.DryRun() {
		log.Info().Msgf("Skipping upload of %d bytes from 0x%04X to %s", sizeFlag, addrFlag, path)
		return nil
	}

	l, err := sess.Loader()
	if err != nil {
		return err
	}

	finish := trackProgress(l, "Uploading", protocol.CalculateDataLines(sizeFlag))
	img, result, err := l.Upload(addrFlag, sizeFlag)
	finish()
	if err != nil {
		return err
	}

	if dumpFlag {
		if err := img.Render(os.Stdout, image.FormatHex); err != nil {
			return err
		}
	}

	if err := img.WriteFile(path, format); err != nil {
		return err
	}

	fmt.Printf("Uploaded %d bytes from 0x%04X to %s (%s, %.1fs)\n",
		result.Bytes, addrFlag, path, format, result.Elapsed.Seconds())
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	sess, log := newSession()
	defer sess.Close()

	if sess.DryRun() {
		log.Info().Msg("Skipping reset and run")
		return nil
	}
	return runProgram(sess)
}

func runProgram(sess *session.Session) error {
	l, err := sess.Loader()
	if err != nil {
		return err
	}
	if err := l.RunProgram(); err != nil {
		return err
	}
	fmt.Println("Program started")
	return nil
}

func runTerminal(cmd *cobra.Command, args []string) error {
	sess, log := newSession()
	defer sess.Close()

	if sess.DryRun() {
		log.Info().Msg("Skipping terminal")
		return nil
	}

	ch, err := sess.Channel()
	if err != nil {
		return err
	}

	download := func(path string) error {
		return downloadFile(sess, path, 0, false, false)
	}
	return terminal.New(ch, download, os.Stdout, log).Run()
}
