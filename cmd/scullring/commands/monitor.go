package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/haivivi/scullring/pkg/cli"
	"github.com/haivivi/scullring/pkg/devnode"
	"github.com/haivivi/scullring/pkg/history"
	"github.com/haivivi/scullring/pkg/peer"
	"github.com/haivivi/scullring/pkg/ring"
)

var (
	monitorURL      string
	monitorFormat   string
	monitorInterval time.Duration
	monitorRecord   string
	monitorOnce     bool
	monitorChannels []string
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Sample the status of served channels",
	Long: `Connect to a served table and print the status of its channels
(occupancy, capacity, read and write cursors) every interval.

With --once, print the current snapshot and exit.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorURL, "url", defaultBaseURL, "server base URL")
	monitorCmd.Flags().StringVarP(&monitorFormat, "format", "o", "table", "output format: table, json or yaml")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 2*time.Second, "sampling interval")
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "record samples to a history store (memory:// or badger:///path)")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "print one snapshot and exit")
	monitorCmd.Flags().StringSliceVar(&monitorChannels, "channel", nil, "channels to sample (default all)")
}

func runMonitor(cmd *cobra.Command, _ []string) (err error) {
	format, err := cli.ParseFormat(monitorFormat)
	if err != nil {
		return err
	}
	out := cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()}

	ctx, cancel := signalContext()
	defer cancel()

	snap, err := devnode.FetchStatus(ctx, monitorURL)
	if err != nil {
		return err
	}
	if monitorOnce {
		return cli.Output(snap, out)
	}

	names := monitorChannels
	if len(names) == 0 {
		for _, cs := range snap {
			names = append(names, cs.Name)
		}
	}
	devices, err := dialAll(ctx, names)
	if err != nil {
		return err
	}
	for _, d := range devices {
		defer multierr.AppendInvoke(&err, closer(d))
	}

	m := &peer.Monitor{
		Interval: monitorInterval,
		OnSample: func(s peer.Sample) {
			if err := cli.Output(s.Channels, out); err != nil {
				cli.PrintError("%v", err)
			}
		},
	}
	for _, d := range devices {
		m.Devices = append(m.Devices, d)
	}
	if monitorRecord != "" {
		var store history.Store
		if store, err = history.Open(monitorRecord); err != nil {
			return err
		}
		defer multierr.AppendInvoke(&err, multierr.Close(store))
		m.Store = store
	}
	return m.Run(ctx)
}

func dialAll(ctx context.Context, names []string) ([]*devnode.Conn, error) {
	conns := make([]*devnode.Conn, 0, len(names))
	for _, name := range names {
		c, err := devnode.Dial(ctx, monitorURL, name, ring.NonBlocking)
		if err != nil {
			for _, c := range conns {
				c.Close()
			}
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, nil
}
