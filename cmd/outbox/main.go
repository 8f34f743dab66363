package main

import (
	"fmt"
	"os"

	"github.com/roach88/outbox/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "outbox:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
