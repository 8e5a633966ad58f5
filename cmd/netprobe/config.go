package main

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tinytelemetry/netprobe/internal/aggregate"
	"github.com/tinytelemetry/netprobe/internal/model"
	"github.com/tinytelemetry/netprobe/internal/pipeline"
	"github.com/tinytelemetry/netprobe/internal/statusserver"
	"gopkg.in/yaml.v3"
)

const (
	defaultProcMount  = "/proc"
	defaultStatusAddr = statusserver.DefaultAddr
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Interface              string        `mapstructure:"interface" yaml:"interface"`
	Targets                []string      `mapstructure:"targets" yaml:"targets"`
	Target                 string        `mapstructure:"target" yaml:"target"`
	PingInterval           time.Duration `mapstructure:"ping-interval" yaml:"ping-interval"`
	PingCount              int           `mapstructure:"ping-count" yaml:"ping-count"`
	PingTimeout            time.Duration `mapstructure:"ping-timeout" yaml:"ping-timeout"`
	PingPrivileged         bool          `mapstructure:"ping-privileged" yaml:"ping-privileged"`
	NetworkMonitorInterval time.Duration `mapstructure:"network-monitor-interval" yaml:"network-monitor-interval"`
	LinkCapacityBps        float64       `mapstructure:"link-capacity-bps" yaml:"link-capacity-bps"`
	ProcMount              string        `mapstructure:"proc-mount" yaml:"proc-mount"`
	LatencyEnabled         bool          `mapstructure:"latency-enabled" yaml:"latency-enabled"`
	PacketLossEnabled      bool          `mapstructure:"packet-loss-enabled" yaml:"packet-loss-enabled"`
	ThroughputEnabled      bool          `mapstructure:"throughput-enabled" yaml:"throughput-enabled"`
	ReportInterval         time.Duration `mapstructure:"report-interval" yaml:"report-interval"`
	UDPServer              string        `mapstructure:"udp-server" yaml:"udp-server"`
	LocalAddr              string        `mapstructure:"local-addr" yaml:"local-addr"`
	RetryAttempts          int           `mapstructure:"retry-attempts" yaml:"retry-attempts"`
	Timeout                time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxBackoff             time.Duration `mapstructure:"max-backoff" yaml:"max-backoff"`
	Format                 string        `mapstructure:"format" yaml:"format"`
	StatusEnabled          bool          `mapstructure:"status-enabled" yaml:"status-enabled"`
	StatusAddr             string        `mapstructure:"status-addr" yaml:"status-addr"`
	StatusInterval         time.Duration `mapstructure:"status-interval" yaml:"status-interval"`
	LogLevel               string        `mapstructure:"log-level" yaml:"log-level"`
	LogFile                string        `mapstructure:"log-file" yaml:"log-file"`
	ConfigPath             string        `mapstructure:"-" yaml:"-"` // not from config file
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interface", model.DefaultInterface)
	v.SetDefault("targets", []string{model.DefaultTarget})
	v.SetDefault("target", model.DefaultTarget)
	v.SetDefault("ping-interval", model.DefaultPingInterval)
	v.SetDefault("ping-count", model.DefaultPingCount)
	v.SetDefault("ping-timeout", model.DefaultPingTimeout)
	v.SetDefault("ping-privileged", false)
	v.SetDefault("network-monitor-interval", model.DefaultNetworkInterval)
	v.SetDefault("link-capacity-bps", 0.0)
	v.SetDefault("proc-mount", defaultProcMount)
	v.SetDefault("latency-enabled", true)
	v.SetDefault("packet-loss-enabled", true)
	v.SetDefault("throughput-enabled", true)
	v.SetDefault("report-interval", model.DefaultReportInterval)
	v.SetDefault("udp-server", fmt.Sprintf("%s:%d", model.DefaultCollectorIP, model.DefaultCollectorPort))
	v.SetDefault("local-addr", "")
	v.SetDefault("retry-attempts", model.DefaultRetryAttempts)
	v.SetDefault("timeout", model.DefaultSendTimeout)
	v.SetDefault("max-backoff", model.DefaultMaxBackoff)
	v.SetDefault("format", aggregate.FormatJSON)
	v.SetDefault("status-enabled", true)
	v.SetDefault("status-addr", defaultStatusAddr)
	v.SetDefault("status-interval", model.DefaultStatusInterval)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "")
}

// loadConfig reads defaults, the optional YAML file and NETPROBE_*
// environment overrides, in increasing priority. A missing file is not an
// error.
func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.SetEnvPrefix("NETPROBE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	setDefaults(v)

	configPath, err := resolveConfigPath(configPath)
	if err != nil {
		return cfg, err
	}
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: reading %s: %v", model.ErrConfiguration, configPath, err)
		}
	} else {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func resolveConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "netprobe", "config.yml"), nil
}

// writeConfig stores cfg as YAML at path. An existing file is never
// overwritten.
func writeConfig(path string, cfg appConfig) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("config file %s already exists", path)
		}
		return fmt.Errorf("creating config file: %w", err)
	}
	if _, err := f.Write(out); err != nil {
		f.Close()
		return fmt.Errorf("writing config file: %w", err)
	}
	return f.Close()
}

func (c appConfig) validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Interface) == "" {
		bad("interface is required")
	}
	if !c.LatencyEnabled && !c.PacketLossEnabled && !c.ThroughputEnabled {
		bad("at least one probe must be enabled")
	}
	if c.LatencyEnabled && len(c.Targets) == 0 {
		bad("targets must not be empty when latency is enabled")
	}
	if c.PacketLossEnabled && strings.TrimSpace(c.Target) == "" {
		bad("target is required when packet-loss is enabled")
	}
	if c.LatencyEnabled || c.PacketLossEnabled {
		if c.PingInterval <= 0 {
			bad("ping-interval must be > 0")
		}
		if c.PingCount <= 0 {
			bad("ping-count must be > 0")
		}
		if c.PingTimeout <= 0 {
			bad("ping-timeout must be > 0")
		}
	}
	if c.ThroughputEnabled && c.NetworkMonitorInterval <= 0 {
		bad("network-monitor-interval must be > 0")
	}
	if c.LinkCapacityBps < 0 {
		bad("link-capacity-bps must be >= 0")
	}
	if c.ReportInterval <= 0 {
		bad("report-interval must be > 0")
	}
	if _, err := c.collector(); err != nil {
		bad("udp-server: %v", err)
	}
	if c.RetryAttempts < 1 {
		bad("retry-attempts must be >= 1")
	}
	if c.Timeout <= 0 {
		bad("timeout must be > 0")
	}
	maxBackoff := c.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = model.DefaultMaxBackoff
	}
	switch {
	case c.MaxBackoff < 0:
		bad("max-backoff must be >= 0")
	case c.Timeout > 0 && maxBackoff < c.Timeout:
		bad("max-backoff %s is below timeout %s", maxBackoff, c.Timeout)
	}
	if !slices.Contains(aggregate.Formats(), c.Format) {
		bad("format %q is not one of %s", c.Format, strings.Join(aggregate.Formats(), ", "))
	}
	if c.StatusEnabled {
		if c.StatusAddr == "" {
			bad("status-addr is required when status-enabled")
		}
		if c.StatusInterval <= 0 {
			bad("status-interval must be > 0")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", model.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func (c appConfig) collector() (netip.AddrPort, error) {
	addr, err := netip.ParseAddrPort(c.UDPServer)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if addr.Port() == 0 {
		return netip.AddrPort{}, fmt.Errorf("port must be non-zero")
	}
	return addr, nil
}

// pipelineConfig converts the validated configuration.
func (c appConfig) pipelineConfig() (pipeline.Config, error) {
	collector, err := c.collector()
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("%w: udp-server: %v", model.ErrConfiguration, err)
	}
	return pipeline.Config{
		Interface:      c.Interface,
		Collector:      collector,
		ReportInterval: c.ReportInterval,
		RetryAttempts:  c.RetryAttempts,
		Timeout:        c.Timeout,
		MaxBackoff:     c.MaxBackoff,
		Format:         c.Format,
		LocalAddr:      c.LocalAddr,
	}, nil
}
