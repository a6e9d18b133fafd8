package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oshokin/ota-server/internal/domain/update"
)

var (
	// buildVersion is the version string of the build being added.
	buildVersion string
	// buildPatchNotes describes the build being added.
	buildPatchNotes string
	// buildReleaseDate is the optional YYYY-MM-DD release date.
	buildReleaseDate string
	// buildPackagePath is the local package file to publish.
	buildPackagePath string
	// buildOverwrite allows replacing an existing build.
	buildOverwrite bool

	// buildCmd groups build management subcommands.
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Manage builds in the registry.",
	}

	// buildAddCmd creates or replaces a build, optionally publishing a package.
	buildAddCmd = &cobra.Command{
		Use:   "add <build-id>",
		Short: "Add a build to the registry, optionally publishing its package.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService()
			if err != nil {
				return err
			}

			input := update.UpsertInput{
				BuildID:     args[0],
				Version:     buildVersion,
				PatchNotes:  buildPatchNotes,
				ReleaseDate: buildReleaseDate,
				Overwrite:   buildOverwrite,
			}

			if buildPackagePath != "" {
				f, err := os.Open(filepath.Clean(buildPackagePath))
				if err != nil {
					return fmt.Errorf("open package file: %w", err)
				}

				defer f.Close()

				input.Package = f
			}

			outcome, rec, err := svc.UpsertBuild(cmd.Context(), input)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (version %s, package %s)\n",
				outcome.String(), args[0], rec.Version, rec.Filename)

			if rec.Checksum != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "checksum: %s\n", rec.Checksum)
			}

			return nil
		},
	}

	// buildDeleteCmd removes a build, trashing its package.
	buildDeleteCmd = &cobra.Command{
		Use:   "delete <build-id>",
		Short: "Delete a build; its package is moved to the trash, not purged.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService()
			if err != nil {
				return err
			}

			trashPath, err := svc.DeleteBuild(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])

			if trashPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "package moved to %s\n", trashPath)
			}

			return nil
		},
	}

	// buildListCmd prints the registry in sequence order.
	buildListCmd = &cobra.Command{
		Use:   "list",
		Short: "List builds in update sequence order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := buildService()
			if err != nil {
				return err
			}

			doc, err := svc.ListBuilds(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tBUILD ID\tVERSION\tRELEASE DATE\tCHECKSUM")

			for i, id := range doc.IDs() {
				rec, _ := doc.Get(id)
				checksum := rec.Checksum

				if len(checksum) > 12 {
					checksum = checksum[:12] + "…"
				}

				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, id, rec.Version, rec.ReleaseDate, checksum)
			}

			return w.Flush()
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	buildAddCmd.Flags().StringVar(&buildVersion, "version", "", "version string of the build")
	buildAddCmd.Flags().StringVar(&buildPatchNotes, "patch-notes", "", "patch notes for the build")
	buildAddCmd.Flags().StringVar(&buildReleaseDate, "release-date", "", "release date (YYYY-MM-DD)")
	buildAddCmd.Flags().StringVar(&buildPackagePath, "package", "", "path of the package file to publish")
	buildAddCmd.Flags().BoolVar(&buildOverwrite, "overwrite", false, "replace the build if it already exists")

	buildCmd.AddCommand(buildAddCmd, buildDeleteCmd, buildListCmd)
	rootCmd.AddCommand(buildCmd)
}
