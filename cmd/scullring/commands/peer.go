package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/haivivi/scullring/pkg/devnode"
	"github.com/haivivi/scullring/pkg/peer"
	"github.com/haivivi/scullring/pkg/ring"
	"github.com/haivivi/scullring/pkg/scull"
)

var (
	peerURL       string
	peerOut       string
	peerIn        string
	peerReadFirst bool
	peerInterval  time.Duration
	peerMode      string
)

// peerCmd represents the peer command
var peerCmd = &cobra.Command{
	Use:   "peer NAME",
	Short: "Exchange messages with a served table",
	Long: `Connect to a served table and, once per interval, write
"Message from Process NAME #n" to --out and read up to 255 bytes from --in.`,
	Args: cobra.ExactArgs(1),
	RunE: runPeer,
}

func init() {
	peerCmd.Flags().StringVar(&peerURL, "url", defaultBaseURL, "server base URL")
	peerCmd.Flags().StringVar(&peerOut, "out", "channel-0", "channel to write to")
	peerCmd.Flags().StringVar(&peerIn, "in", "channel-1", "channel to read from")
	peerCmd.Flags().BoolVar(&peerReadFirst, "read-first", false, "read before writing on each tick")
	peerCmd.Flags().DurationVar(&peerInterval, "interval", time.Second, "pause between ticks")
	peerCmd.Flags().StringVar(&peerMode, "mode", "blocking", "blocking or nonblocking")
}

func runPeer(cmd *cobra.Command, args []string) (err error) {
	mode, err := ring.ParseMode(peerMode)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	out, err := devnode.Dial(ctx, peerURL, peerOut, mode)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, closer(out))
	in, err := devnode.Dial(ctx, peerURL, peerIn, mode)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, closer(in))

	p := &peer.Pinger{
		Name:      args[0],
		Out:       out,
		In:        in,
		Interval:  peerInterval,
		ReadFirst: peerReadFirst,
		OnEvent: func(ev peer.Event) {
			fmt.Fprintln(cmd.OutOrStdout(), ev.String())
		},
	}
	return p.Run(ctx)
}

// closer closes a remote device, ignoring a connection already torn down by
// cancellation.
func closer(c *devnode.Conn) multierr.Invoker {
	return multierr.Invoke(func() error {
		if err := c.Close(); err != nil && !errors.Is(err, scull.ErrNoSuchInstance) {
			return err
		}
		return nil
	})
}
