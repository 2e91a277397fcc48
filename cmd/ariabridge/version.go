package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aria-bridge/bridge-go/pkg/version"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), info.Client)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}
