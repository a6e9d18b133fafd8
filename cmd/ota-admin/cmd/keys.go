package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/ota-server/internal/config"
	"github.com/oshokin/ota-server/internal/integrity"
)

var (
	// keysForce overwrites an existing signing key.
	keysForce bool

	// keysCmd groups signing key subcommands.
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Manage the package signing keypair.",
	}

	// keysInitCmd generates the RSA signing keypair.
	keysInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Generate the RSA signing keypair used to sign package checksums.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}

			if _, err = os.Stat(cfg.PrivateKeyFile); err == nil && !keysForce {
				return fmt.Errorf("signing key already exists at %s, pass --force to replace it", cfg.PrivateKeyFile)
			}

			key, err := integrity.GeneratePrivateKey(integrity.DefaultKeyBits)
			if err != nil {
				return fmt.Errorf("generate signing key: %w", err)
			}

			if err = integrity.SavePrivateKey(cfg.PrivateKeyFile, key); err != nil {
				return fmt.Errorf("save signing key: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "signing key written to %s\n", cfg.PrivateKeyFile)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	keysInitCmd.Flags().BoolVar(&keysForce, "force", false, "replace an existing signing key")

	keysCmd.AddCommand(keysInitCmd)
	rootCmd.AddCommand(keysCmd)
}
