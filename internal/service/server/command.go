package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	api "github.com/oshokin/ota-server/internal/api/http"
	"github.com/oshokin/ota-server/internal/auth"
	"github.com/oshokin/ota-server/internal/config"
	"github.com/oshokin/ota-server/internal/integrity"
	"github.com/oshokin/ota-server/internal/logger"
	"github.com/oshokin/ota-server/internal/repository/apikey"
	"github.com/oshokin/ota-server/internal/repository/registry"
	"github.com/oshokin/ota-server/internal/resolver"
	"github.com/oshokin/ota-server/internal/storage/artifact"
)

// Options controls the ota-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override.
	ListenAddress string
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server stops. The whole service context is assembled here, once, failing
// fast if the signing key cannot be read.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "ota-server")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		cfg.ListenAddress = opts.ListenAddress
	}

	// The server must not start without its signing key.
	key, err := integrity.LoadPrivateKey(cfg.PrivateKeyFile)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}

	store, err := artifact.NewStore(cfg.PackagesDir, cfg.TrashDir)
	if err != nil {
		return fmt.Errorf("initialise artifact store: %w", err)
	}

	strategy, err := resolver.StrategyFor(cfg.Ordering, store)
	if err != nil {
		return fmt.Errorf("initialise ordering strategy: %w", err)
	}

	buildRepo := registry.NewFileRepository(cfg.MetadataFile)
	keyRepo := apikey.NewFileRepository(cfg.APIKeysFile)

	svc := NewService(
		buildRepo,
		store,
		integrity.NewService(key, store),
		resolver.New(buildRepo, store, strategy, cfg.SkipGaps),
		auth.NewGate(keyRepo),
	)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: api.NewServer(svc).Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	logger.InfoKV(ctx, "OTA server listening",
		"listen_address", cfg.ListenAddress,
		"packages_dir", cfg.PackagesDir,
		"ordering", strategy.Name(),
		"skip_gaps", cfg.SkipGaps)

	// Done channel is closed after Shutdown finishes to ensure we block
	// until in-flight requests complete before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf(ctx, "HTTP shutdown: %v", err)
		}

		close(done)
	}()

	if err = httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}
