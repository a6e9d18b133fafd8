package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/ota-server/internal/config"
	"github.com/oshokin/ota-server/internal/logger"
	"github.com/oshokin/ota-server/internal/service/server"
	"github.com/oshokin/ota-server/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the default logging level.
	logLevel string

	// rootCmd represents the base command for running the OTA update server.
	rootCmd = &cobra.Command{
		Use:   "ota-server [listen-address]",
		Short: "Run the OTA update server.",
		Long: `Starts the HTTP server that distributes firmware build packages to devices.

Devices report their current build ID and learn whether a newer build exists;
package integrity is proven with a SHA-256 checksum and an RSA signature.
The listen address can be provided as an argument to override the settings
file (e.g. :9090, 0.0.0.0:8000). The server refuses to start if the signing
key configured in the settings file cannot be read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the ota-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "logging level (debug, info, warn, error)")
}
