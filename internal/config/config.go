package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds settings for the OTA server binaries.
type Config struct {
	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string `yaml:"listen_addr"`
	// PackagesDir is the directory holding published update packages.
	PackagesDir string `yaml:"packages_dir"`
	// TrashDir is the directory where soft-deleted packages are kept.
	TrashDir string `yaml:"trash_dir"`
	// MetadataFile is the path of the ordered build registry document.
	MetadataFile string `yaml:"metadata_file"`
	// APIKeysFile is the path of the API key document.
	APIKeysFile string `yaml:"api_keys_file"`
	// PrivateKeyFile is the path of the PEM-encoded RSA signing key.
	PrivateKeyFile string `yaml:"private_key_file"`
	// Ordering selects the build sequencing strategy.
	Ordering string `yaml:"ordering"`
	// SkipGaps makes the resolver search past builds whose artifact is missing.
	SkipGaps bool `yaml:"skip_gaps"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

const (
	// DefaultConfigFilename is the default filename for server settings.
	DefaultConfigFilename = "ota-server-settings.yaml"

	// DefaultListenAddress is used when no listen address is configured.
	DefaultListenAddress = ":8000"

	// DefaultPackagesDir is the default package storage directory.
	DefaultPackagesDir = "packages"

	// DefaultTrashDir is the default soft-delete directory.
	DefaultTrashDir = "trash"

	// DefaultMetadataFilename is the default registry document path.
	DefaultMetadataFilename = "metadata.json"

	// DefaultAPIKeysFilename is the default API key document path.
	DefaultAPIKeysFilename = "api_keys.json"

	// DefaultPrivateKeyFilename is the default signing key path.
	DefaultPrivateKeyFilename = "keys/private.pem"

	// DefaultShutdownTimeout is the default graceful shutdown bound.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultFilePermissions is the default file permission for data documents.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is the default permission for created data directories.
	DefaultDirPermissions = 0o755
)

// Ordering strategy names accepted in the settings file.
const (
	OrderingInsertion   = "insertion"
	OrderingReleaseDate = "release-date"
	OrderingModTime     = "modtime"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownOrdering is returned for an unrecognized ordering strategy name.
	errUnknownOrdering = errors.New("unknown ordering strategy")
)

// Default returns a configuration populated with default values.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
// A missing file yields the defaults so the server can start in an empty directory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	switch cfg.Ordering {
	case OrderingInsertion, OrderingReleaseDate, OrderingModTime:
	default:
		return fmt.Errorf("%w: %q", errUnknownOrdering, cfg.Ordering)
	}

	return nil
}

// applyDefaults fills empty fields with default values.
func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.PackagesDir == "" {
		cfg.PackagesDir = DefaultPackagesDir
	}

	if cfg.TrashDir == "" {
		cfg.TrashDir = DefaultTrashDir
	}

	if cfg.MetadataFile == "" {
		cfg.MetadataFile = DefaultMetadataFilename
	}

	if cfg.APIKeysFile == "" {
		cfg.APIKeysFile = DefaultAPIKeysFilename
	}

	if cfg.PrivateKeyFile == "" {
		cfg.PrivateKeyFile = DefaultPrivateKeyFilename
	}

	if cfg.Ordering == "" {
		cfg.Ordering = OrderingInsertion
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}
