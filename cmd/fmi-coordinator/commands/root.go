// Package commands implements the fmi-coordinator CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "fmi-coordinator",
	Short: "Jacobi-step master for FMI 2.0 co-simulation components",
	Long: `fmi-coordinator dials a set of remote fmi-server instances and steps them
in lock-step, transferring connection values between steps (Jacobi coupling).

Use "fmi-coordinator [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("fmi-coordinator %s (commit: %s, built: %s)\n", Version, Commit, Date)
		return nil
	},
}
