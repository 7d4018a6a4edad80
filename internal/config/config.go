package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dl-alexandre/drivepush/internal/utils"
)

const (
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.yaml"
	// AppName names the config directory and keyring service
	AppName = "drivepush"
	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "DRIVEPUSH"

	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

// Config holds application configuration
type Config struct {
	// LocalRoot is the directory to push. Usually given as an argument.
	LocalRoot string `mapstructure:"local_root"`

	// RemoteFolder names the top-level Drive folder. Defaults to the base name of LocalRoot.
	RemoteFolder string `mapstructure:"remote_folder"`

	TokenFile        string   `mapstructure:"token_file"`
	ClientSecretFile string   `mapstructure:"client_secret_file"`
	TokenStore       string   `mapstructure:"token_store"`
	Scopes           []string `mapstructure:"scopes"`

	// Exclude holds glob patterns matched against paths relative to LocalRoot
	Exclude []string `mapstructure:"exclude"`

	// ChunkSize is the resumable upload chunk size in bytes
	ChunkSize int `mapstructure:"chunk_size"`

	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	DryRun bool `mapstructure:"dry_run"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dir, err := GetConfigDir()
	if err != nil {
		dir = "."
	}
	return &Config{
		TokenFile:        filepath.Join(dir, "token.json"),
		ClientSecretFile: filepath.Join(dir, "credentials.json"),
		TokenStore:       TokenStoreFile,
		Scopes:           append([]string(nil), utils.DefaultScopes...),
		ChunkSize:        utils.UploadChunkSize,
		MaxRetries:       utils.DefaultMaxRetries,
		RetryBaseDelay:   utils.DefaultRetryDelayMs * time.Millisecond,
		RequestTimeout:   0,
		LogLevel:         "info",
	}
}

// Load resolves configuration with precedence: flags > env > config file > defaults.
// configFile may be empty, in which case the default location is tried and a
// missing file is not an error. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()

	v.SetDefault("local_root", def.LocalRoot)
	v.SetDefault("remote_folder", def.RemoteFolder)
	v.SetDefault("token_file", def.TokenFile)
	v.SetDefault("client_secret_file", def.ClientSecretFile)
	v.SetDefault("token_store", def.TokenStore)
	v.SetDefault("scopes", def.Scopes)
	v.SetDefault("exclude", []string{})
	v.SetDefault("chunk_size", def.ChunkSize)
	v.SetDefault("max_retries", def.MaxRetries)
	v.SetDefault("retry_base_delay", def.RetryBaseDelay)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("dry_run", def.DryRun)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.TokenFile = expandHome(cfg.TokenFile)
	cfg.ClientSecretFile = expandHome(cfg.ClientSecretFile)
	cfg.LocalRoot = expandHome(cfg.LocalRoot)
	cfg.LogFile = expandHome(cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"remote-folder": "remote_folder",
	"token-file":    "token_file",
	"client-secret": "client_secret_file",
	"token-store":   "token_store",
	"exclude":       "exclude",
	"chunk-size":    "chunk_size",
	"max-retries":   "max_retries",
	"log-file":      "log_file",
	"dry-run":       "dry_run",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TokenStore != TokenStoreFile && c.TokenStore != TokenStoreKeyring {
		return fmt.Errorf("invalid token store: %s (must be '%s' or '%s')", c.TokenStore, TokenStoreFile, TokenStoreKeyring)
	}

	if c.TokenFile == "" {
		return fmt.Errorf("token file path must not be empty")
	}

	if len(c.Scopes) == 0 {
		return fmt.Errorf("at least one OAuth scope is required")
	}

	if c.ChunkSize < utils.UploadMinChunkSize || c.ChunkSize > utils.UploadMaxChunkSize {
		return fmt.Errorf("chunk size must be between %d and %d bytes, got: %d",
			utils.UploadMinChunkSize, utils.UploadMaxChunkSize, c.ChunkSize)
	}

	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("max retries must be between 0 and 10, got: %d", c.MaxRetries)
	}

	if c.RetryBaseDelay < 100*time.Millisecond || c.RetryBaseDelay > time.Minute {
		return fmt.Errorf("retry base delay must be between 100ms and 1m, got: %s", c.RetryBaseDelay)
	}

	if c.RequestTimeout < 0 || c.RequestTimeout > time.Hour {
		return fmt.Errorf("request timeout must be between 0 and 1h, got: %s", c.RequestTimeout)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// RemoteFolderName returns the Drive folder the sync root maps to.
func (c *Config) RemoteFolderName() string {
	if c.RemoteFolder != "" {
		return c.RemoteFolder
	}
	root := c.LocalRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.Base(root)
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", AppName), nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
