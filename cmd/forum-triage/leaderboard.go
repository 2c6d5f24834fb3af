package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	sharedconfig "github.com/stake-plus/forum-triage/src/config"
	shareddata "github.com/stake-plus/forum-triage/src/data"
	ranking "github.com/stake-plus/forum-triage/src/triage/leaderboard"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Publish the question leaderboard once, or keep it updated with --watch",
	RunE: func(cmd *cobra.Command, args []string) error {
		tagQuery, _ := cmd.Flags().GetString("tag")
		watch, _ := cmd.Flags().GetBool("watch")

		db := openDB()
		cfg := sharedconfig.LoadLeaderboardConfig(db)
		forum, err := restForum(cfg.Base, cfg.ForumChannelID)
		if err != nil {
			return err
		}

		agg := ranking.New(forum, forum, ranking.Config{
			ChannelID: cfg.ChannelID,
			Interval:  cfg.Interval,
			Location:  cfg.Location,
		})
		if db != nil {
			agg.WithAttributions(shareddata.NewAttributionStore(db))
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		tag, err := agg.ResolveTag(ctx, tagQuery)
		if err != nil {
			return err
		}

		if watch {
			agg.Start(ctx, tag)
			<-ctx.Done()
			agg.Stop()
			return nil
		}

		result, err := agg.RunOnce(ctx, tag)
		if err != nil {
			return err
		}
		verb := "updated"
		if result.Created {
			verb = "posted"
		}
		fmt.Printf("leaderboard %s (message %s, %d threads ranked)\n\n%s\n", verb, result.MessageID, len(result.Entries), result.Content)
		return nil
	},
}

func init() {
	leaderboardCmd.Flags().String("tag", "", "Only rank questions carrying this tag (ID or name)")
	leaderboardCmd.Flags().Bool("watch", false, "Keep updating on the configured interval until interrupted")
	rootCmd.AddCommand(leaderboardCmd)
}
