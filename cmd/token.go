package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/pkg/jwt"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token",
	Long:  `Sign an access token for the given user with auth.jwt_secret. Jobs created with the token belong to that user.`,
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	flags := tokenCmd.Flags()
	flags.String("user-id", "", "user id placed in the token")
	flags.Duration("expiry", 0, "token lifetime (default: auth.access_token_expiry)")

	_ = tokenCmd.MarkFlagRequired("user-id")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}

	userID, _ := cmd.Flags().GetString("user-id")
	expiry, _ := cmd.Flags().GetDuration("expiry")
	if expiry <= 0 {
		expiry = cfg.Auth.AccessTokenExpiry
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	token, err := jwt.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.Issuer, expiry).GenerateToken(userID)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
