package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow connectivity and replay queued requests on reconnect",
	Long: "Probes network.probe_url, prints every online/offline transition and " +
		"replays the offline queue whenever the connection comes back. Runs until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initClient(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		out := cmd.OutOrStdout()
		unsubscribe := env.Monitor.Subscribe(func(online bool) {
			state := "offline"
			if online {
				state = "online"
			}
			_, _ = fmt.Fprintf(out, "%s %s (queued: %d)\n",
				time.Now().Format(time.TimeOnly), state, env.Queue.Size(ctx))
		})
		defer unsubscribe()

		stopFlush := env.Queue.AutoFlush(env.Monitor, env.API)
		defer stopFlush()

		_, checker := buildMonitoring(env.Queue, env.Monitor, env.Breakers)
		go checker.Run(ctx)
		go env.Queue.Run(ctx, env.API, time.Duration(cfg.Queue.FlushIntervalSecs)*time.Second)

		watchConnectivity(ctx, env.Monitor)

		<-ctx.Done()
		zap.L().Info("watch stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
