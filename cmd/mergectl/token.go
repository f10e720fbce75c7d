package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/feedbackhq/feedback/internal/config"
	"github.com/feedbackhq/feedback/internal/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token <principal>",
	Short: "Issue an admin bearer token for the merge API",
	Long: `Sign a JWT for principal with JWT_SECRET. Useful for scripts and for
connecting to the suggestion stream with ?access_token=.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"skipApp": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := tokenConfig()
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}

		auth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
			Enabled: true,
			Secret:  cfg.JWTSecret,
			Issuer:  cfg.JWTIssuer,
		})
		token, err := auth.GenerateToken(args[0], ttl)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func tokenConfig() (*config.Config, error) {
	if app != nil && app.cfg != nil {
		return app.cfg, nil
	}
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func init() {
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
