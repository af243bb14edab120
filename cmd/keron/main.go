// Command keron is the CLI entrypoint: it delegates entirely to
// internal/cli, which wires cobra, configuration, and the C1-C7 pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/icepuma/keron/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
