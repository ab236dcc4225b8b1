// Command guardexec runs programs behind the secure execution layer:
// arguments travel as a discrete vector, no shell involved.
package main

import (
	"fmt"
	"os"

	"github.com/guardexec/guardexec/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "guardexec: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
