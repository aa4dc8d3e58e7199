// Command tfctl is the command-line client for a trust-fabric server.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omega-cyber/trust-fabric/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL   string
	cfgFile     string
	outputJSON  bool
	adminSecret string
	adminToken  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tfctl",
	Short: "trust-fabric ledger CLI",
	Long: `tfctl talks to a trust-fabric server: it generates Dilithium keys, signs
and submits transactions, seals blocks and inspects or validates the chain.

Settings may come from flags, from ~/.trustfabric/config.yaml, or from
TFCTL_* environment variables (e.g. TFCTL_SERVER, TFCTL_ADMIN_SECRET).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.trustfabric/config.yaml)")
	pf.StringVar(&serverURL, "server", "", "trust-fabric server URL (default http://localhost:8080)")
	pf.BoolVar(&outputJSON, "json", false, "print JSON instead of text")
	pf.StringVar(&adminSecret, "admin-secret", "", "admin secret exchanged for a sealing token")
	pf.StringVar(&adminToken, "token", "", "pre-issued admin bearer token")

	rootCmd.AddCommand(versionCmd)
}

// initConfig fills unset flags from the config file and environment.
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".trustfabric"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("TFCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("keys", defaultKeyDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	serverURL = v.GetString("server")
	adminSecret = v.GetString("admin-secret")
	adminToken = v.GetString("token")
	if cmd.Flags().Lookup("keys") != nil {
		keyDir = v.GetString("keys")
	}
	return nil
}

func defaultKeyDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".trustfabric", "keys")
}

func newClient() (*client.Client, error) {
	var opts []client.Option
	if adminToken != "" {
		opts = append(opts, client.WithBearerToken(adminToken))
	}
	if adminSecret != "" {
		opts = append(opts, client.WithAdminSecret(adminSecret))
	}
	return client.New(serverURL, opts...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tfctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tfctl %s (trust-fabric)\n", version)
	},
}
