package cli

import (
	"errors"
	"fmt"

	"github.com/layer-3/keyauth/adapters/identity"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply postgres schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Identity.Driver != "postgres" {
			return errors.New("migrate requires identity.driver=postgres")
		}

		version, err := identity.Migrate(cfg.Identity.Postgres.ConnString())
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
