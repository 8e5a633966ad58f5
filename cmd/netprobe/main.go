package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	run := func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return runAgent(cfg)
	}

	root := &cobra.Command{
		Use:           "netprobe",
		Short:         "Host network telemetry agent",
		Long:          "netprobe measures latency, packet loss and interface throughput and reports one record per interval to a UDP collector.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default is $HOME/.config/netprobe/config.yml)")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the agent (default)",
		Args:  cobra.NoArgs,
		RunE:  run,
	})
	root.AddCommand(newValidateCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func newValidateCmd(configPath *string) *cobra.Command {
	var (
		printConfig bool
		writeFile   bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if writeFile {
				path, err := resolveConfigPath(*configPath)
				if err != nil {
					return err
				}
				if err := writeConfig(path, cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			}
			if !printConfig {
				fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
				return nil
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&printConfig, "print", false, "print the effective configuration as YAML")
	cmd.Flags().BoolVar(&writeFile, "write", false, "write the effective configuration to the config path if no file exists there")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "netprobe - Network Telemetry Agent\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
			fmt.Fprintf(out, "  Go version: %s\n", goVersion)
		},
	}
}
