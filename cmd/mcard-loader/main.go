package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bigbag/mcard-loader/internal/serial"
	"github.com/bigbag/mcard-loader/internal/session"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	portFlag    string
	baudFlag    int
	timeoutFlag time.Duration
	delayFlag   time.Duration
	dryRunFlag  bool
	verboseFlag int
	quietFlag   bool

	addrFlag   uint32
	runFlag    bool
	dumpFlag   bool
	sizeFlag   int
	formatFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mcard-loader",
		Short: "Load programs into a 1802 Membership Card",
		Long: `mcard-loader talks to the Arduino 1802 Loader sketch over a serial port.

It downloads S-record, Intel HEX, hex-pair and binary images into the 1802
memory, uploads memory back into a file, resets and runs the program, and
offers an interactive terminal to the loader.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	defaults := session.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&portFlag, "port", "p", "", "Serial port (auto-detect if not specified)")
	flags.IntVarP(&baudFlag, "baud", "b", defaults.BaudRate, "Baud rate")
	flags.DurationVar(&timeoutFlag, "timeout", defaults.AckTimeout, "Time to wait for an acknowledgement")
	flags.DurationVar(&delayFlag, "delay", defaults.CommandDelay, "Pause after every command")
	flags.BoolVarP(&dryRunFlag, "dry-run", "n", false, "Simulate commands without opening the port")
	flags.CountVarP(&verboseFlag, "verbose", "v", "More output (repeat for protocol trace)")
	flags.BoolVarP(&quietFlag, "quiet", "q", false, "Only warnings and errors")

	// Download command
	downloadCmd := &cobra.Command{
		Use:   "download <file>",
		Short: "Download a file into 1802 memory",
		Long: `Download an image file into 1802 memory.

The file type is taken from the extension:
  .s19   Motorola S-record
  .ihex  Intel HEX
  .hex   hex pairs, loaded from address 0
  .bin   raw binary, loaded from address 0

Without --addr the image is loaded at its own start address.`,
		Args: cobra.ExactArgs(1),
		RunE: runDownload,
	}
	downloadCmd.Flags().Uint32VarP(&addrFlag, "addr", "a", 0, "Load address (default: image start address)")
	downloadCmd.Flags().BoolVarP(&runFlag, "run", "r", false, "Reset and run after the download")
	downloadCmd.Flags().BoolVar(&dumpFlag, "dump", false, "Print the image as hex pairs before downloading")

	// Upload command
	uploadCmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload 1802 memory into a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}
	uploadCmd.Flags().Uint32VarP(&addrFlag, "addr", "a", 0, "Start address")
	uploadCmd.Flags().IntVarP(&sizeFlag, "size", "s", 256, "Number of bytes to read")
	uploadCmd.Flags().StringVarP(&formatFlag, "format", "f", "srec", "Output format: srec, ihex, hex or bin")
	uploadCmd.Flags().BoolVar(&dumpFlag, "dump", false, "Print the uploaded data as hex pairs")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Reset the 1802 and run the program",
		RunE:  runRun,
	}

	terminalCmd := &cobra.Command{
		Use:   "terminal",
		Short: "Interactive terminal to the loader",
		RunE:  runTerminal,
	}

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mcard-loader %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(downloadCmd, uploadCmd, runCmd, terminalCmd, listCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "*** %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the console logger for the requested verbosity.
func newLogger(verbosity int, quiet bool) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case quiet:
		level = zerolog.WarnLevel
	case verbosity == 1:
		level = zerolog.DebugLevel
	case verbosity > 1:
		level = zerolog.TraceLevel
	}

	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func newSession() (*session.Session, zerolog.Logger) {
	log := newLogger(verboseFlag, quietFlag)

	cfg := session.DefaultConfig()
	cfg.Port = portFlag
	cfg.BaudRate = baudFlag
	cfg.AckTimeout = timeoutFlag
	cfg.CommandDelay = delayFlag
	cfg.DryRun = dryRunFlag

	if cfg.DryRun {
		log.Warn().Msg("Dry run, nothing is sent to the device")
	}
	return session.New(cfg, log), log
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p.Name)
		fmt.Printf("      desc: %s\n", p.Description)
		fmt.Printf("      hwid: %s\n", p.HWID)
	}

	return nil
}
