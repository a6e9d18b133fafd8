package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/ota-server/internal/auth"
	"github.com/oshokin/ota-server/internal/config"
	"github.com/oshokin/ota-server/internal/integrity"
	"github.com/oshokin/ota-server/internal/repository/apikey"
	"github.com/oshokin/ota-server/internal/repository/registry"
	"github.com/oshokin/ota-server/internal/resolver"
	"github.com/oshokin/ota-server/internal/service/server"
	"github.com/oshokin/ota-server/internal/storage/artifact"
	"github.com/oshokin/ota-server/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for local OTA server administration.
	rootCmd = &cobra.Command{
		Use:   "ota-admin",
		Short: "Administer the OTA server's local data directory.",
		Long: `Manages builds, packages and API keys directly on the filesystem the
OTA server serves from. Run it on the server host, pointing at the same
settings file as ota-server.`,
	}
)

// errNoSigningKey hints at the bootstrap command when the key is missing.
var errNoSigningKey = errors.New("signing key not found, run 'ota-admin keys init' first")

// Execute runs the ota-admin CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}

// buildService assembles the same service context the server runs with,
// failing fast when the signing key is unreadable.
func buildService() (*server.Service, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}

	key, err := integrity.LoadPrivateKey(cfg.PrivateKeyFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, errNoSigningKey
		}

		return nil, nil, fmt.Errorf("load signing key: %w", err)
	}

	store, err := artifact.NewStore(cfg.PackagesDir, cfg.TrashDir)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise artifact store: %w", err)
	}

	strategy, err := resolver.StrategyFor(cfg.Ordering, store)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise ordering strategy: %w", err)
	}

	buildRepo := registry.NewFileRepository(cfg.MetadataFile)

	svc := server.NewService(
		buildRepo,
		store,
		integrity.NewService(key, store),
		resolver.New(buildRepo, store, strategy, cfg.SkipGaps),
		auth.NewGate(apikey.NewFileRepository(cfg.APIKeysFile)),
	)

	return svc, cfg, nil
}
