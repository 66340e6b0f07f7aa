package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/scullring/pkg/devnode"
	"github.com/haivivi/scullring/pkg/scull"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the channels over websocket",
	Long: `Create the channel table and serve it:

  GET /channels                         JSON status of every channel
  GET /channels/{name}?mode=nonblocking websocket bound to one channel

Stops on SIGINT or SIGTERM, interrupting every open session.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		tbl, err := scull.New(cfg)
		if err != nil {
			return err
		}
		defer tbl.Destroy()

		ctx, cancel := signalContext()
		defer cancel()
		return devnode.ListenAndServe(ctx, serveAddr, tbl)
	},
}

func init() {
	addTableFlags(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
}
