package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stake-plus/forum-triage/src/actions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the triage bot, the leaderboard and the operator API",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := openDB()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		manager, err := actions.StartAll(ctx, db)
		if err != nil {
			return err
		}
		log.Printf("forum-triage running (%v)", manager.Names())

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		manager.Stop(stopCtx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
