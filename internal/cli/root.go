package cli

import (
	"fmt"

	"github.com/layer-3/keyauth/internal/config"
	"github.com/layer-3/keyauth/internal/logging"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "keyauth",
	Short: "Wallet challenge-response authentication service",
	Long: `keyauth authenticates Ethereum wallets by nonce signing and issues
short-lived access tokens with rotating refresh tokens.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/keyauth/config.yaml)")
}

// loadConfig reads the configuration and installs the configured logger as
// the process default.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).
		With(logging.Service("keyauth"))
	logging.SetDefault(logger)

	return cfg, logger, nil
}
