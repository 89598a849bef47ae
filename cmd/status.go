package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hirely/hirely-cli/internal/monitoring"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, offline queue and alert status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initClient(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		refreshConnectivity(ctx, env.Monitor)

		collector, _ := buildMonitoring(env.Queue, env.Monitor, env.Breakers)
		snap := collector.Collect(ctx)
		alerts := monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap)

		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*monitoring.Snapshot
				Alerts []monitoring.Alert `json:"alerts,omitempty"`
			}{snap, alerts})
		}
		printStatus(cmd.OutOrStdout(), snap, alerts)
		return nil
	},
}

func printStatus(out io.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	state := "online"
	if !snap.Online {
		state = "offline"
	}
	_, _ = fmt.Fprintf(out, "network:   %s\n", state)
	_, _ = fmt.Fprintf(out, "queue:     %d pending, %d retrying\n", snap.QueueDepth, snap.QueueRetrying)
	if snap.OldestQueuedAt != nil {
		_, _ = fmt.Fprintf(out, "oldest:    %s\n", snap.OldestQueuedAt.Format("2006-01-02 15:04:05"))
	}

	names := make([]string, 0, len(snap.Breakers))
	for name := range snap.Breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(out, "breaker:   %s %s\n", name, snap.Breakers[name])
	}

	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "alert:     [%s] %s\n", a.Severity, a.Message)
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}
