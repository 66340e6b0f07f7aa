package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/scullring/pkg/cli"
	"github.com/haivivi/scullring/pkg/history"
	"github.com/haivivi/scullring/pkg/peer"
	"github.com/haivivi/scullring/pkg/ring"
	"github.com/haivivi/scullring/pkg/scull"
)

var (
	runDuration time.Duration
	runInterval time.Duration
	runRecord   string
	runBoard    bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the channels with peers A and B and a monitor",
	Long: `Create the channel table and run, in one process:

  A  writes "Message from Process A #n" to channel 0, then reads channel 1
  B  reads channel 0, then writes "Message from Process B #n" to channel 1
  C  samples the status of both channels

Runs until interrupted or until --duration elapses.`,
	RunE: runAll,
}

func init() {
	addTableFlags(runCmd)
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "stop after this long (0 runs until interrupted)")
	runCmd.Flags().DurationVar(&runInterval, "interval", time.Second, "pause between peer ticks")
	runCmd.Flags().StringVar(&runRecord, "record", "", "record samples to a history store (memory:// or badger:///path)")
	runCmd.Flags().BoolVar(&runBoard, "board", false, "draw a status board instead of event lines")
}

func runAll(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Instances < 2 {
		return fmt.Errorf("run needs at least 2 channels, got %d", cfg.Instances)
	}

	tbl, err := scull.New(cfg)
	if err != nil {
		return err
	}
	defer tbl.Destroy()

	var store history.Store
	if runRecord != "" {
		if store, err = history.Open(runRecord); err != nil {
			return err
		}
		defer store.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()
	if runDuration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, runDuration)
		defer stop()
	}

	handles := make([]scull.Device, 0, 2+tbl.Len())
	open := func(i int) scull.Device {
		// Indices are below tbl.Len(), so Open cannot fail here.
		h, _ := tbl.Open(i, ring.Blocking)
		handles = append(handles, h)
		return h
	}
	defer func() {
		for _, h := range handles {
			h.Close()
		}
	}()

	var mu sync.Mutex
	board := cli.NewBoard(appName, 8)
	onEvent := func(ev peer.Event) {
		if runBoard {
			board.Event(ev.String())
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(cmd.OutOrStdout(), ev.String())
	}
	onSample := func(s peer.Sample) {
		mu.Lock()
		defer mu.Unlock()
		if runBoard {
			board.Update(s.Time, s.Channels)
			fmt.Fprint(cmd.OutOrStdout(), "\033[H\033[2J"+board.Render(80, time.Now())+"\n")
			return
		}
		for _, cs := range s.Channels {
			fmt.Fprintln(cmd.OutOrStdout(), cli.StatusLine(cs))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "---")
	}

	a := &peer.Pinger{Name: "A", Out: open(0), In: open(1), Interval: runInterval, OnEvent: onEvent}
	b := &peer.Pinger{Name: "B", Out: open(1), In: open(0), Interval: runInterval, ReadFirst: true, OnEvent: onEvent}
	devices := make([]scull.Device, tbl.Len())
	for i := range devices {
		devices[i] = open(i)
	}
	c := &peer.Monitor{Devices: devices, Interval: 2 * runInterval, Store: store, OnSample: onSample}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(gctx) })
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return c.Run(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("run finished", "channels", tbl.Len())
	return cli.Output(tbl.Snapshot(), cli.OutputOptions{Format: cli.FormatTable, Writer: cmd.OutOrStdout()})
}
