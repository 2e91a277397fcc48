package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/aria-bridge/bridge-go/pkg/discovery"
)

func discoverCmd() *cobra.Command {
	var (
		timeout time.Duration
		iface   string
		first   bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find bridge hosts on the local network",
		Long: `Browse mDNS for bridge hosts advertising ` + discovery.ServiceType + `
and print their WebSocket URLs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{
				BrowseTimeout: timeout,
				Interface:     iface,
				Logger:        slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
			})
			defer browser.Stop()

			out := cmd.OutOrStdout()
			if first {
				host, err := browser.Find(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, host.URL())
				return nil
			}

			hosts, err := browser.Browse(ctx)
			if err != nil {
				return err
			}
			found := 0
			for host := range hosts {
				found++
				printHost(out, host)
			}
			if found == 0 {
				return discovery.ErrNotFound
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", discovery.BrowseTimeout, "How long to browse")
	cmd.Flags().StringVar(&iface, "interface", "", "Restrict browsing to one network interface")
	cmd.Flags().BoolVar(&first, "first", false, "Print only the URL of the first host found")
	return cmd
}

func printHost(w io.Writer, host *discovery.HostService) {
	fmt.Fprintf(w, "%s\n", host.InstanceName)
	fmt.Fprintf(w, "  URL:      %s\n", host.URL())
	if host.Protocol != 0 {
		fmt.Fprintf(w, "  Protocol: %d\n", host.Protocol)
	}
	if host.ProjectID != "" {
		fmt.Fprintf(w, "  Project:  %s\n", host.ProjectID)
	}
}
