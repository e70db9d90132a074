// Package main is the entry point for the yct CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "1.1.0"

// Global flags.
var (
	cfgPath   string
	verbose   bool
	logFormat string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "yct",
		Short: "Yandex Cloud instance and snapshot toolkit",
		Long: `yct drives VM lifecycle operations against the Yandex Cloud
compute API: start, stop and restart instances, snapshot their disks,
and prune snapshots past the configured retention window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file (default yct.yaml)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or text")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newStartCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newRestartCmd())
	root.AddCommand(newSnapshotCmd())
	root.AddCommand(newBackupCmd())
	root.AddCommand(newRunsCmd())

	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
