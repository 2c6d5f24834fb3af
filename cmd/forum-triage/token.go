package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stake-plus/forum-triage/src/api/webserver"
	sharedconfig "github.com/stake-plus/forum-triage/src/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the operator API",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg := sharedconfig.LoadAPIConfig()
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		token, err := webserver.IssueToken([]byte(cfg.JWTSecret), subject, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", "operator", "Subject recorded in the token and in API logs")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime (0 for no expiry)")
	rootCmd.AddCommand(tokenCmd)
}
