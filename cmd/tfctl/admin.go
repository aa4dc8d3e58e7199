package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/omega-cyber/trust-fabric/internal/identity"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange the admin secret for a sealing token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminSecret == "" {
			return fmt.Errorf("--admin-secret or TFCTL_ADMIN_SECRET is required")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		token, err := c.FetchToken(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret",
	Short: "Read an admin secret from stdin and print its bcrypt hash",
	Long: `hash-secret prints the value for admin.secret_hash in trustfabric.yaml
(or TRUSTFABRIC_ADMIN_SECRET_HASH):

  printf '%s' "$SECRET" | tfctl hash-secret`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read secret from stdin: %w", err)
		}
		secret := strings.TrimRight(line, "\r\n")
		if len(secret) < 12 {
			return fmt.Errorf("admin secret must be at least 12 characters")
		}
		hash, err := identity.HashSecret(secret)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(hashSecretCmd)
}
