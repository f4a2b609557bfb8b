// Package commands implements the fmi-server CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "fmi-server",
	Short: "FMI 2.0 co-simulation TCP protocol server",
	Long: `fmi-server wraps a single co-simulation component and exposes it over a
framed TCP protocol so a remote master algorithm can drive it step by step.

Use "fmi-server [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("fmi-server %s (commit: %s, built: %s)\n", Version, Commit, Date)
		return nil
	},
}
