// Package main is the entry point for qerbiectl, the operator CLI used to
// migrate the database and bootstrap merchants outside the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/qerbie/qerbie-backend/cmd/qerbiectl/internal/commands"
	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd := &cobra.Command{
		Use:   "qerbiectl",
		Short: "Qerbie operator tool",
		Long: `qerbiectl runs operator tasks against the Qerbie database.

Configuration is read the same way as the services: ./config/qerbiectl.yaml,
/etc/qerbie/qerbiectl.yaml, .env and QERBIE_* environment variables.`,
		SilenceUsage: true,
	}

	commands.Register(rootCmd, commands.Connect)

	return rootCmd.Execute()
}
