package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// keyCmd groups API key subcommands.
	keyCmd = &cobra.Command{
		Use:   "key",
		Short: "Manage client API keys.",
	}

	// keyGenerateCmd mints a named API key and prints the secret once.
	keyGenerateCmd = &cobra.Command{
		Use:   "generate <name>",
		Short: "Generate an API key; the secret is printed once and not stored readably.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService()
			if err != nil {
				return err
			}

			secret, err := svc.GenerateKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", secret)

			return nil
		},
	}

	// keyRevokeCmd removes a named API key.
	keyRevokeCmd = &cobra.Command{
		Use:   "revoke <name>",
		Short: "Revoke an API key; clients holding it lose access immediately.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService()
			if err != nil {
				return err
			}

			if err = svc.RevokeKey(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])

			return nil
		},
	}

	// keyListCmd prints the names of registered API keys.
	keyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List API key names; secrets are never shown.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := buildService()
			if err != nil {
				return err
			}

			names, err := svc.ListKeys(cmd.Context())
			if err != nil {
				return err
			}

			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	keyCmd.AddCommand(keyGenerateCmd, keyRevokeCmd, keyListCmd)
	rootCmd.AddCommand(keyCmd)
}
