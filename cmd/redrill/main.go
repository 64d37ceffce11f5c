package main

import (
	"fmt"
	"os"

	"github.com/opsrange/redrill/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
