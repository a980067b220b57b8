// Command signerstate inspects, reconciles and backs up signer state snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/signerstate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
