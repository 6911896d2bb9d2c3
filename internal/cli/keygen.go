package cli

import (
	"fmt"
	"os"

	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/spf13/cobra"
)

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a P-256 token signing key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := tokenizer.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		pemBytes, err := tokenizer.EncodeKey(key)
		if err != nil {
			return err
		}

		if keygenOut == "" || keygenOut == "-" {
			_, err = cmd.OutOrStdout().Write(pemBytes)
			return err
		}

		if err := os.WriteFile(keygenOut, pemBytes, 0o600); err != nil {
			return fmt.Errorf("failed to write key: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "signing key written to %s\n", keygenOut)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "", "output file (default: stdout)")
	rootCmd.AddCommand(keygenCmd)
}
