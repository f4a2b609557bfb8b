// Command fmi-server runs the FMI 2.0 co-simulation TCP protocol server.
package main

import (
	"fmt"
	"os"

	"github.com/fmitcpd/fmitcpd/cmd/fmi-server/commands"
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
