// Command parcelcore is the CLI front-end for the incremental request
// tracker: run builds entry requests, inspect reports graph statistics, and
// gc sweeps unreferenced auxiliary nodes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yudppp/parcel/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitExecutionFailure)
	}
}
