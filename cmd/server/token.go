package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/huddle/internal/app"
	"github.com/vovakirdan/huddle/internal/auth"
	"github.com/vovakirdan/huddle/internal/config"
)

var tokenName string

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint an identity token for a user",
	Long:  "Prints a signed token that a client passes in its register command.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(config.Config{})
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return errors.New("jwt_secret is not configured; set HUDDLE_JWT_SECRET or jwt_secret in the config file")
		}

		token, err := auth.GenerateToken(app.JWTConfig(cfg), args[0], tokenName)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name embedded in the token")
}
