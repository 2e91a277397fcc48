// Command ariabridge runs a bridge client against an Aria bridge host and
// inspects the protocol logs it records.
//
// Usage:
//
//	ariabridge run [--config bridge.yaml] [--interactive]
//	ariabridge discover [--timeout 3s]
//	ariabridge log view|export|filter|stats <file.blog>
//	ariabridge version [--short]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ariabridge",
		Short: "Aria bridge client",
		Long: `ariabridge connects to an Aria bridge host over WebSocket, keeps the
session alive across host restarts and forwards console and error events.

Protocol logs written with --protocol-log can be inspected with the log
subcommands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		discoverCmd(),
		logCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
