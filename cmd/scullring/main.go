// scullring runs blocking circular-buffer channels and the programs that
// exercise them.
//
// Usage:
//
//	scullring run                           # table, peers A/B and monitor in one process
//	scullring serve --addr :8642            # serve the channels over websocket
//	scullring peer A --out channel-0 --in channel-1
//	scullring peer B --out channel-1 --in channel-0 --read-first
//	scullring monitor --format json         # sample a remote table
//	scullring history channel-0 --dsn badger:///tmp/scull
package main

import (
	"os"

	"github.com/haivivi/scullring/cmd/scullring/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
