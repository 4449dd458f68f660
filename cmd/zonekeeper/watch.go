package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/poyrazK/zonekeeper/internal/adapters/redis"
	"github.com/poyrazK/zonekeeper/internal/core/domain"
)

func newWatchInvalidationsCmd(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch-invalidations",
		Short: "Print zones as rectify runs publish their invalidation messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.RedisAddr == "" {
				return errors.New("redis_addr is not configured")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			coord := redis.NewCoordinator(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, a.cfg.LockTTL(), a.logger)
			a.closers = append(a.closers, coord.Close)

			seen := 0
			return coord.WatchInvalidations(ctx, func(zone domain.Name) bool {
				fmt.Fprintln(cmd.OutOrStdout(), zone)
				seen++
				return count <= 0 || seen < count
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many messages, 0 watches until interrupted")
	return cmd
}
