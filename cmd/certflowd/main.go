// certflowd is the certification-prep workflow daemon: it serves the
// workflow HTTP API and drives instances through assessment generation,
// gap analysis, and content rendering.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "certflowd",
		Short: "Certification prep workflow engine",
		Long: `certflowd runs the certification preparation workflow engine. It
exposes an HTTP API to start, inspect, and resume workflow instances,
and persists every stage transition so instances survive restarts.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
