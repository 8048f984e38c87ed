// Package main provides the marketlab CLI entrypoint: a cobra-driven
// wrapper around the environment facade with two subcommands, "run" (drive
// a scripted scenario tick by tick) and "migrate" (provision the sqlite
// storage schema).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marketlab",
		Short: "Deterministic, tick-driven market simulation environment core",
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// cobra already printed the error; signal failure to the shell.
		os.Exit(1)
	}
}
