package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/tinytelemetry/netprobe/internal/model"
	"github.com/tinytelemetry/netprobe/internal/observe"
	"github.com/tinytelemetry/netprobe/internal/receiver"
	"github.com/tinytelemetry/netprobe/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

type watchOptions struct {
	listen  string
	plain   bool
	history int
	logFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts watchOptions
	var showVersion bool

	cmd := &cobra.Command{
		Use:           "netprobe-watch",
		Short:         "Receive and display netprobe records",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			return runWatch(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.listen, "listen", "l", receiver.DefaultAddr, "UDP address to receive records on")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print records as JSON instead of the dashboard")
	cmd.Flags().IntVar(&opts.history, "history", 120, "records kept for the dashboard")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", `log file (default ~/.local/state/netprobe-watch/netprobe-watch.log, "-" for stderr)`)
	cmd.Flags().BoolVar(&showVersion, "version", false, "print version information")
	return cmd
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "netprobe-watch - Record Viewer\n")
	fmt.Fprintf(w, "  Version:    %s\n", version)
	fmt.Fprintf(w, "  Commit:     %s\n", commit)
	fmt.Fprintf(w, "  Built:      %s\n", buildTime)
	fmt.Fprintf(w, "  Go version: %s\n", goVersion)
}

func runWatch(out io.Writer, opts watchOptions) error {
	logger, cleanupLogger, err := observe.NewLogger("netprobe-watch", observe.LoggerConfig{Path: opts.logFile})
	if err != nil {
		return err
	}
	defer cleanupLogger()

	server := receiver.NewServer(opts.listen, receiver.ServerConfig{Logger: logger})
	if err := server.Start(); err != nil {
		return fmt.Errorf("listen on %s: %w", opts.listen, err)
	}
	defer server.Stop()

	if opts.plain {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		fmt.Fprintf(os.Stderr, "listening on %s\n", server.Addr())
		return printRecords(ctx, out, server.Records())
	}

	feed := tui.NewFeed(server.Records(), server.Addr(), opts.history)
	app := tui.NewApp(feed, tui.NewDashboardPage(feed), tui.NewRecordsPage(feed))

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("dashboard requires a real terminal, use --plain")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// plainRecord is the JSON shape printed per record in --plain mode.
type plainRecord struct {
	Format string                `json:"format"`
	From   string                `json:"from,omitempty"`
	Size   int                   `json:"size"`
	Record model.TelemetryRecord `json:"record"`
}

// printRecords writes each record as indented JSON until ctx is done or
// src closes.
func printRecords(ctx context.Context, w io.Writer, src <-chan receiver.Received) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-src:
			if !ok {
				return nil
			}
			pr := plainRecord{Format: r.Format, Size: r.Size, Record: r.Record}
			if r.From != nil {
				pr.From = r.From.String()
			}
			if err := enc.Encode(pr); err != nil {
				return err
			}
		}
	}
}
