package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tinytelemetry/netprobe/internal/echo"
	"github.com/tinytelemetry/netprobe/internal/model"
	"github.com/tinytelemetry/netprobe/internal/netcounter"
	"github.com/tinytelemetry/netprobe/internal/observe"
	"github.com/tinytelemetry/netprobe/internal/pipeline"
	"github.com/tinytelemetry/netprobe/internal/scheduler"
	"github.com/tinytelemetry/netprobe/internal/statusserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// statusFunc adapts a closure to statusserver.StatusSource.
type statusFunc func() model.AgentStatus

func (f statusFunc) Status() model.AgentStatus { return f() }

// runAgent starts the probes, the reporting pipeline and the status API,
// and blocks until a signal arrives or the pipeline fails.
func runAgent(cfg appConfig) error {
	logger, cleanupLogger, err := observe.NewLogger("netprobe", observe.LoggerConfig{
		Level: cfg.LogLevel,
		Path:  cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer cleanupLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observe.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	obs := observe.NewObserver(logger, metrics)

	counters, err := netcounter.NewProcSource(cfg.ProcMount)
	if err != nil {
		return err
	}
	entries, err := buildEntries(buildProbePlugins(cfg), probeDeps{
		Pinger:   echo.NewPinger(cfg.PingPrivileged),
		Counters: counters,
	})
	if err != nil {
		return err
	}

	pcfg, err := cfg.pipelineConfig()
	if err != nil {
		return err
	}

	var pipe *pipeline.Pipeline
	observers := []model.RecordObserver{obs}

	var status *statusserver.Server
	if cfg.StatusEnabled {
		status = statusserver.NewServer(cfg.StatusAddr, statusFunc(func() model.AgentStatus {
			return pipe.Status()
		}), statusserver.ServerConfig{
			Gatherer:     reg,
			LossResetter: lossResetter(entries),
			Logger:       logger.Named("status"),
		})
		observers = append(observers, status)
	}

	pipe, err = pipeline.New(pcfg, entries, pipeline.Deps{
		Logger:    obs,
		Recorder:  obs,
		Observers: observers,
	})
	if err != nil {
		return err
	}

	if status != nil {
		if err := status.Start(); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
		defer status.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		_ = logger.Sync()
		os.Exit(1)
	}()

	printStartupBanner(cfg, entries, statusAddr(status))
	logger.Info("agent started",
		zap.String("interface", cfg.Interface),
		zap.String("collector", pcfg.Collector.String()),
		zap.String("format", cfg.Format),
		zap.Int("probes", len(entries)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipe.Run(gctx)
	})
	if cfg.StatusEnabled {
		g.Go(func() error {
			logStatusLoop(gctx, logger, pipe, cfg.StatusInterval)
			return nil
		})
	}

	err = g.Wait()
	signal.Stop(sigCh)
	if err != nil {
		logger.Error("agent stopped", zap.Error(err))
		return err
	}
	logger.Info("agent stopped")
	return nil
}

// lossResetter returns the packet loss probe among entries, if enabled.
func lossResetter(entries []scheduler.Entry) statusserver.StatsResetter {
	for _, e := range entries {
		if r, ok := e.Probe.(statusserver.StatsResetter); ok {
			return r
		}
	}
	return nil
}

func statusAddr(s *statusserver.Server) string {
	if s == nil {
		return ""
	}
	return s.Addr()
}

func logStatusLoop(ctx context.Context, logger *zap.Logger, src statusserver.StatusSource, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("status", statusFields(src.Status())...)
		}
	}
}

// statusFields flattens an AgentStatus into log fields: counters, the
// sender state and one "<probe>" field per slot with its run/error
// numbers and latest value.
func statusFields(st model.AgentStatus) []zap.Field {
	fields := []zap.Field{
		zap.Uint64("cycles", st.Cycles),
		zap.Uint64("delivered", st.Delivered),
		zap.Uint64("dropped", st.Dropped),
		zap.String("sender_state", string(st.SenderState)),
	}
	if !st.Started.IsZero() {
		fields = append(fields, zap.Duration("uptime", time.Since(st.Started).Round(time.Second)))
	}
	for _, slot := range st.Slots {
		summary := fmt.Sprintf("runs=%d errors=%d", slot.Runs, slot.Errors)
		if slot.Sample != nil {
			summary += fmt.Sprintf(" value=%.3f", slot.Sample.Value)
		} else {
			summary += " value=none"
		}
		if slot.LastError != "" {
			summary += " last_error=" + slot.LastError
		}
		fields = append(fields, zap.String(slot.Probe, summary))
	}
	return fields
}

func printStartupBanner(cfg appConfig, entries []scheduler.Entry, apiAddr string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔╗╔╔═╗╔╦╗╔═╗╦═╗╔═╗╔╗ ╔═╗
    ║║║║╣  ║ ╠═╝╠╦╝║ ║╠╩╗║╣
    ╝╚╝╚═╝ ╩ ╩  ╩╚═╚═╝╚═╝╚═╝`)

	var lines []string
	lines = append(lines, "", logo, "    "+dim.Render("v"+version), "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    Probes"), "")
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, e.Probe.Name(), dim.Render("every "+e.Interval.String())))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Delivery"), "")
	lines = append(lines, fmt.Sprintf("    %s  Collector      %s", check, cyan.Render(cfg.UDPServer)))
	lines = append(lines, fmt.Sprintf("    %s  Format         %s", check, dim.Render(cfg.Format)))
	lines = append(lines, fmt.Sprintf("    %s  Report         %s", check, dim.Render("every "+cfg.ReportInterval.String())))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Status"), "")
	if apiAddr != "" {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(apiAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
