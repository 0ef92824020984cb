package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"autoapply/services"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <client>",
	Short: "Mint an API token for a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		token, err := services.NewJWTService(appConfig.JWTSecret, tokenTTL).GenerateToken(args[0])
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
