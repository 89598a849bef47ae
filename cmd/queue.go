package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirely/hirely-cli/internal/model"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and replay the offline request queue",
}

var queueListJSON bool

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued requests, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initClient(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		items := env.Queue.Items(ctx)
		out := cmd.OutOrStdout()
		if queueListJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		if len(items) == 0 {
			_, _ = fmt.Fprintln(out, "queue is empty")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tMETHOD\tRETRIES\tQUEUED\tURL")
		for _, it := range items {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				it.ID, it.Method, retries(it), time.UnixMilli(it.Timestamp).UTC().Format(time.DateTime), it.URL)
		}
		return w.Flush()
	},
}

func retries(it model.QueuedRequest) string {
	return fmt.Sprintf("%d/%d", it.RetryCount, it.MaxRetries)
}

var queueSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Print the number of queued requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initClient(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), env.Queue.Size(ctx))
		return nil
	},
}

var queueFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Replay queued requests now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initClient(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		refreshConnectivity(ctx, env.Monitor)
		if !env.Monitor.IsOnline() {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "offline, nothing replayed")
			return nil
		}

		res, err := env.Queue.Process(ctx, env.API)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "succeeded=%d failed=%d remaining=%d\n",
			res.Succeeded, res.Failed, env.Queue.Size(ctx))
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every queued request",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initClient(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n := env.Queue.Size(ctx)
		if err := env.Queue.Clear(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared %d request(s)\n", n)
		return nil
	},
}

func init() {
	queueListCmd.Flags().BoolVar(&queueListJSON, "json", false, "print queued requests as JSON")
	queueCmd.AddCommand(queueListCmd, queueSizeCmd, queueFlushCmd, queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}
