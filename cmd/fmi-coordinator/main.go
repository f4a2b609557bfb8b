// Command fmi-coordinator drives a set of remote FMI 2.0 co-simulation
// components in lock-step (Jacobi stepping).
package main

import (
	"fmt"
	"os"

	"github.com/fmitcpd/fmitcpd/cmd/fmi-coordinator/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version, commands.Commit, commands.Date = version, commit, date
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
