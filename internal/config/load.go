package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
)

// newViperInstance creates a Viper instance with the standard setup: built-in
// defaults, the CCTM_ environment prefix, and a key replacer so nested keys
// map to environment variables (worker.queue -> CCTM_WORKER_QUEUE).
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CCTM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not
// found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, cctmerrors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, cctmerrors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper precedence.
// Configuration is loaded in the following order (highest precedence first):
//  1. Environment variables (CCTM_* prefix)
//  2. Project config (.cc-task-manager/config.yaml)
//  3. Global config (~/.cc-task-manager/config.yaml)
//  4. Built-in defaults
//
// For CLI flag overrides, use LoadWithOverrides instead.
//
// Missing config files are not errors; many deployments run on defaults and
// environment variables alone.
func Load(ctx context.Context) (*Config, error) {
	v := newViperInstance()

	// Global config first, so project config merges over it.
	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	cfg, err := unmarshalAndValidate(v)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("worker.queue", cfg.Worker.Queue).
		Int("worker.max_concurrent_tasks", cfg.Worker.MaxConcurrentTasks).
		Dur("process.timeout", cfg.Process.Timeout).
		Msg("configuration loaded")

	return cfg, nil
}

// loadGlobalConfig loads ~/.cc-task-manager/config.yaml if it exists.
func loadGlobalConfig(v *viper.Viper) error {
	globalConfigPath, ok := getGlobalConfigPathIfExists()
	if !ok {
		return nil
	}

	v.SetConfigFile(globalConfigPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return cctmerrors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// getGlobalConfigPathIfExists returns the global config path if it exists.
func getGlobalConfigPathIfExists() (string, bool) {
	globalConfigPath, err := GlobalConfigPath()
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(globalConfigPath); err != nil {
		return "", false
	}
	return globalConfigPath, true
}

// loadProjectConfig loads .cc-task-manager/config.yaml if it exists.
func loadProjectConfig(v *viper.Viper) error {
	projectConfigPath := ProjectConfigPath()
	if !fileExists(projectConfigPath) {
		return nil
	}

	v.SetConfigFile(projectConfigPath)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return cctmerrors.Wrap(err, "failed to read project config file")
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides, which
// have the highest precedence. Only non-zero values in overrides are applied.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, cctmerrors.Wrap(err, "invalid configuration after overrides")
	}

	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths for testing.
// Either path can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, cctmerrors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, cctmerrors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// applyOverrides copies non-zero override values onto cfg.
func applyOverrides(cfg, overrides *Config) {
	if overrides.Worker.MaxConcurrentTasks != 0 {
		cfg.Worker.MaxConcurrentTasks = overrides.Worker.MaxConcurrentTasks
	}
	if overrides.Worker.Queue != "" {
		cfg.Worker.Queue = overrides.Worker.Queue
	}
	if overrides.Worker.RedisAddr != "" {
		cfg.Worker.RedisAddr = overrides.Worker.RedisAddr
	}
	if overrides.Process.Command != "" {
		cfg.Process.Command = overrides.Process.Command
	}
	if len(overrides.Process.Args) > 0 {
		cfg.Process.Args = overrides.Process.Args
	}
	if overrides.Process.Timeout != 0 {
		cfg.Process.Timeout = overrides.Process.Timeout
	}
	if overrides.Process.GracefulShutdown != 0 {
		cfg.Process.GracefulShutdown = overrides.Process.GracefulShutdown
	}
	if overrides.SessionLogs.Dir != "" {
		cfg.SessionLogs.Dir = overrides.SessionLogs.Dir
	}
	if overrides.Log.Level != "" {
		cfg.Log.Level = overrides.Log.Level
	}
}

// setDefaults configures all default values on the Viper instance.
// These defaults match the values from DefaultConfig().
// IMPORTANT: Keys must match the YAML tag names exactly for proper mapping.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("worker.max_concurrent_tasks", defaults.Worker.MaxConcurrentTasks)
	v.SetDefault("worker.queue", defaults.Worker.Queue)
	v.SetDefault("worker.redis_addr", defaults.Worker.RedisAddr)

	v.SetDefault("process.command", defaults.Process.Command)
	v.SetDefault("process.args", []string{})
	v.SetDefault("process.timeout", defaults.Process.Timeout.String())
	v.SetDefault("process.graceful_shutdown", defaults.Process.GracefulShutdown.String())

	v.SetDefault("session_logs.dir", defaults.SessionLogs.Dir)

	v.SetDefault("log.level", defaults.Log.Level)
}

// viperDecoderOption returns the decode hooks used when unmarshaling, so
// duration strings like "5m" decode into time.Duration fields.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
