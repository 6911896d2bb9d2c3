package cli

import (
	"fmt"

	"github.com/layer-3/keyauth/internal/app"
	"github.com/layer-3/keyauth/internal/config"
	"github.com/layer-3/keyauth/internal/logging"
	"github.com/layer-3/keyauth/service"
	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Identity administration commands",
}

var identityDisableCmd = &cobra.Command{
	Use:   "disable [address]",
	Short: "Block an address from logging in or refreshing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], false)
	},
}

var identityEnableCmd = &cobra.Command{
	Use:   "enable [address]",
	Short: "Allow a disabled address to log in again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], true)
	},
}

func setActive(cmd *cobra.Command, address string, active bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, closeStore, err := adminService(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	identity, err := svc.SetActive(cmd.Context(), address, active)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", address, err)
	}

	state := "enabled"
	if !identity.Active {
		state = "disabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", identity.Address, state, identity.ID)
	return nil
}

// adminService wires an AuthService over the configured identity store only.
// Token operations are not available through it.
func adminService(cmd *cobra.Command, cfg *config.Config, logger *logging.Logger) (*service.AuthService, func() error, error) {
	if cfg.Identity.Driver == "memory" {
		logger.Warn("identity.driver is memory; changes will not outlive this command")
	}

	identities, closeStore, err := app.NewIdentityStore(cmd.Context(), cfg.Identity)
	if err != nil {
		return nil, nil, err
	}

	svc := service.NewAuthService(identities, nil, nil, nil,
		service.WithCallTimeout(cfg.Auth.CallTimeout),
		service.WithLogger(logger.Logger),
	)
	return svc, closeStore, nil
}

func init() {
	identityCmd.AddCommand(identityDisableCmd, identityEnableCmd)
	rootCmd.AddCommand(identityCmd)
}

