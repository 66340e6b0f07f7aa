package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/scullring/pkg/scull"
)

const (
	appName        = "scullring"
	defaultAddr    = ":8642"
	defaultBaseURL = "http://localhost:8642"
)

var (
	cfgFile       string
	verbose       bool
	flagInstances int
	flagCapacity  int
	flagPrefix    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Blocking circular-buffer channels",
	Long: `scullring manages a fixed set of bounded byte channels.

Writers block while a channel is full and readers block while it is empty,
unless the channel is opened in non-blocking mode. The channels can be used
in-process (run) or served over websocket (serve) to remote peers and
monitors.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "table config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log channel waits and transfers")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(peerCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// addTableFlags registers the flags that override the config file.
func addTableFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagInstances, "instances", scull.DefaultInstances, "number of channels")
	cmd.Flags().IntVar(&flagCapacity, "capacity", scull.DefaultCapacity, "capacity of each channel in bytes")
	cmd.Flags().StringVar(&flagPrefix, "prefix", scull.DefaultPrefix, "channel name prefix")
}

// loadConfig reads --config, then applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command) (scull.Config, error) {
	cfg := scull.DefaultConfig()
	if cfgFile != "" {
		var err error
		if cfg, err = scull.LoadConfig(cfgFile); err != nil {
			return scull.Config{}, err
		}
	}
	if cmd.Flags().Changed("instances") {
		cfg.Instances = flagInstances
	}
	if cmd.Flags().Changed("capacity") {
		cfg.Capacity = flagCapacity
	}
	if cmd.Flags().Changed("prefix") {
		cfg.Prefix = flagPrefix
	}
	return cfg, cfg.Validate()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
