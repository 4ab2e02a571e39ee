// Command beet is the swiss-army CLI for the beet storage engine: create
// an index, print its decoded config, report its height, or count its
// leaves/internals/nodes/keys (spec §6). It exists primarily to seed
// integration tests against real on-disk trees.
package main

import (
	"fmt"
	"os"

	"github.com/beetdb/beet/cmd/beet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
