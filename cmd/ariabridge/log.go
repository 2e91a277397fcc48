package main

import (
	"github.com/spf13/cobra"

	"github.com/aria-bridge/bridge-go/cmd/ariabridge/commands"
)

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect protocol log files",
	}
	cmd.AddCommand(logViewCmd(), logExportCmd(), logFilterCmd(), logStatsCmd())
	return cmd
}

func logViewCmd() *cobra.Command {
	var sessionID, layer, direction, category string

	cmd := &cobra.Command{
		Use:   "view <file.blog>",
		Short: "View a log file in human-readable form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := commands.ViewFilter{SessionID: sessionID}
			if layer != "" {
				l, err := commands.ParseLayer(layer)
				if err != nil {
					return err
				}
				filter.Layer = &l
			}
			if direction != "" {
				d, err := commands.ParseDirection(direction)
				if err != nil {
					return err
				}
				filter.Direction = &d
			}
			if category != "" {
				c, err := commands.ParseCategory(category)
				if err != nil {
					return err
				}
				filter.Category = &c
			}
			return commands.RunView(args[0], filter, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Filter by session ID")
	cmd.Flags().StringVar(&layer, "layer", "", "Filter by layer (transport, wire, supervisor)")
	cmd.Flags().StringVar(&direction, "direction", "", "Filter by direction (in, out, none)")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category (message, heartbeat, state, error)")
	return cmd
}

func logExportCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export <file.blog>",
		Short: "Export a log file to JSONL or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunExport(args[0], format, output)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", commands.FormatJSONL, "Output format (jsonl, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func logFilterCmd() *cobra.Command {
	var opts commands.FilterOptions

	cmd := &cobra.Command{
		Use:   "filter <file.blog>",
		Short: "Write the matching events of a log file to a new file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunFilter(args[0], opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Output, "output", "o", "", "Output file (required)")
	f.StringVar(&opts.SessionID, "session", "", "Filter by session ID")
	f.StringVar(&opts.ClientID, "client", "", "Filter by host-assigned client ID")
	f.StringVar(&opts.TimeStart, "time-start", "", "Only events at or after this RFC3339 time")
	f.StringVar(&opts.TimeEnd, "time-end", "", "Only events at or before this RFC3339 time")
	f.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, supervisor)")
	f.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out, none)")
	f.StringVar(&opts.Category, "category", "", "Filter by category (message, heartbeat, state, error)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func logStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file.blog>",
		Short: "Show statistics about a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunStats(args[0], cmd.OutOrStdout())
		},
	}
}
