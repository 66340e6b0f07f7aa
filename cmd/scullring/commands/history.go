package commands

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/haivivi/scullring/pkg/cli"
	"github.com/haivivi/scullring/pkg/history"
)

var (
	historyDSN    string
	historySince  time.Duration
	historyFormat string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history CHANNEL",
	Short: "Print recorded status samples of a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		format, err := cli.ParseFormat(historyFormat)
		if err != nil {
			return err
		}
		store, err := history.Open(historyDSN)
		if err != nil {
			return err
		}
		defer multierr.AppendInvoke(&err, multierr.Close(store))

		var since time.Time
		if historySince > 0 {
			since = time.Now().Add(-historySince)
		}
		recs, err := store.List(cmd.Context(), args[0], since)
		if err != nil {
			return err
		}
		return cli.Output(recs, cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyDSN, "dsn", "", "history store (badger:///path)")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only samples newer than this (0 for all)")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "o", "table", "output format: table, json or yaml")
	_ = historyCmd.MarkFlagRequired("dsn")
}
