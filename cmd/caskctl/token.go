package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"caskhouse/pkg/platform/middleware/admin"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

// tokenCmd signs an admin bearer token with ADMIN_JWT_SECRET.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin bearer token",
	Long: `Issue an HS256 admin token for the /admin routes.

The signing secret is read from ADMIN_JWT_SECRET and must match the server's.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Operator identity recorded in audit events (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, _ []string) error {
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		return errors.New("ADMIN_JWT_SECRET is not set")
	}
	if tokenSubject == "" {
		return errors.New("--subject is required")
	}
	if tokenTTL <= 0 {
		return errors.New("--ttl must be positive")
	}
	token, err := admin.IssueToken([]byte(secret), tokenSubject, tokenTTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
