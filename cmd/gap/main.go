// Command gap compiles weighted rules and evaluates them to a fixpoint.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gaplus/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
