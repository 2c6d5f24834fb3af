package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	sharedconfig "github.com/stake-plus/forum-triage/src/config"
	"github.com/stake-plus/forum-triage/src/triage/similarity"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the duplicate index from the forum and report what it holds",
	Long: `Rebuild the duplicate index from the forum's active and archived threads.

With --query the rebuilt index is asked for prior questions similar to the
given text, using the configured threshold unless --threshold is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		threshold, _ := cmd.Flags().GetFloat64("threshold")

		cfg := sharedconfig.LoadTriageConfig(openDB())
		forum, err := restForum(cfg.Base, cfg.ForumChannelID)
		if err != nil {
			return err
		}

		ctx := context.Background()
		index := similarity.NewIndex()
		stats, err := index.Rebuild(ctx, forum)
		if err != nil {
			return err
		}
		fmt.Printf("threads: %d, entries: %d, skipped: %d\n", stats.Threads, stats.Entries, stats.Skipped)

		tags, err := forum.AvailableTags(ctx)
		if err != nil {
			return err
		}
		sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
		for _, tag := range tags {
			fmt.Printf("  %-30s %d\n", tag.Name, index.Len(tag.ID))
		}

		if query == "" {
			return nil
		}
		if threshold <= 0 {
			threshold = cfg.Threshold
		}
		fmt.Printf("\nmatches for %q (threshold %.2f):\n", query, threshold)
		for _, tag := range tags {
			for _, m := range index.Query(tag.ID, query, threshold) {
				fmt.Printf("  [%s] %.3f %s (%s)\n", tag.Name, m.Score, m.Text, forum.ThreadURL(m.ThreadRef))
			}
		}
		return nil
	},
}

func init() {
	rebuildCmd.Flags().String("query", "", "Question text to look up after the rebuild")
	rebuildCmd.Flags().Float64("threshold", 0, "Similarity threshold for --query")
	rootCmd.AddCommand(rebuildCmd)
}
