package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	sharedconfig "github.com/stake-plus/forum-triage/src/config"
	shareddata "github.com/stake-plus/forum-triage/src/data"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:           "forum-triage",
	Short:         "Duplicate detection and triage bot for a Discord Q&A forum",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		sharedconfig.LoadEnvFiles(envFiles...)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Env files to load before reading configuration (default .env)")
}

// openDB connects to MySQL when MYSQL_DSN is set. Without it the bot runs on
// environment settings alone.
func openDB() *gorm.DB {
	dsn, err := shareddata.GetMySQLDSN()
	if err != nil {
		log.Printf("db: %v, running without settings table and attribution store", err)
		return nil
	}
	db, err := shareddata.ConnectMySQL(dsn)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := shareddata.Migrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return db
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}
