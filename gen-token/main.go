package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"todo-api/api"
)

var (
	expiry   time.Duration
	audience string
	issuer   string
)

var rootCmd = &cobra.Command{
	Use:   "gen-token [user-id]",
	Short: "Print an HS256 bearer token for a user id",
	Long: `gen-token signs a token with JWT_SECRET that the API accepts for the
given user id. It is meant for local development and load tests.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := generate(os.Getenv("JWT_SECRET"), args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCmd.Flags().DurationVar(&expiry, "expiry", time.Hour, "token lifetime")
	rootCmd.Flags().StringVar(&audience, "audience", os.Getenv("JWT_AUDIENCE"), "aud claim")
	rootCmd.Flags().StringVar(&issuer, "issuer", os.Getenv("JWT_ISSUER"), "iss claim")
}

func generate(secret, userID string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}
	auth, err := api.NewAuth(api.AuthConfig{
		Secret:   []byte(secret),
		Expiry:   expiry,
		Audience: audience,
		Issuer:   issuer,
	})
	if err != nil {
		return "", err
	}
	return auth.IssueToken(userID)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
