package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatlinehq/chatline/internal/auth"
	"github.com/chatlinehq/chatline/internal/config"
)

func newTokenCommand() *cobra.Command {
	var (
		agentID string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an agent JWT for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if ttl <= 0 {
				ttl, err = time.ParseDuration(cfg.Auth.JWTExpiresIn)
				if err != nil {
					return fmt.Errorf("parse jwt_expires_in: %w", err)
				}
			}
			signed, expiresAt, err := auth.GenerateToken(agentID, cfg.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Println(signed)
			fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "agent id to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.jwt_expires_in)")
	_ = cmd.MarkFlagRequired("agent-id")
	return cmd
}
