package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultDBPath is used when no flag, environment variable or config file
	// names a database.
	DefaultDBPath = "llm-unify.db"

	// DefaultLogLevel keeps the CLI quiet unless asked otherwise.
	DefaultLogLevel = "warn"

	envPrefix  = "LLM_UNIFY"
	configName = "llm-unify"

	keyDatabase = "database"
	keyLogLevel = "log_level"
)

// Config holds the resolved database path and logging level.
type Config struct {
	DBPath     string // database file path
	LogLevel   string // zerolog level name
	ConfigFile string // config file used, if any
	EnvVarSet  bool   // whether LLM_UNIFY_DB was used
}

// Options carries the flags that take precedence over every other source.
// Nil flags are ignored.
type Options struct {
	Database *pflag.Flag
	LogLevel *pflag.Flag
	// ConfigDirs overrides the directories searched for llm-unify.yaml.
	ConfigDirs []string
}

// Resolve layers the configuration sources: command-line flags, then
// LLM_UNIFY_* environment variables (a .env file in the working directory is
// loaded first), then an optional llm-unify.yaml, then the defaults.
func Resolve(opts Options) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetDefault(keyDatabase, DefaultDBPath)
	v.SetDefault(keyLogLevel, DefaultLogLevel)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindEnv(keyDatabase, envPrefix+"_DB"); err != nil {
		return nil, err
	}
	if err := v.BindEnv(keyLogLevel, envPrefix+"_LOG_LEVEL"); err != nil {
		return nil, err
	}

	if opts.Database != nil {
		if err := v.BindPFlag(keyDatabase, opts.Database); err != nil {
			return nil, err
		}
	}
	if opts.LogLevel != nil {
		if err := v.BindPFlag(keyLogLevel, opts.LogLevel); err != nil {
			return nil, err
		}
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	for _, dir := range configDirs(opts.ConfigDirs) {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		DBPath:     v.GetString(keyDatabase),
		LogLevel:   v.GetString(keyLogLevel),
		ConfigFile: v.ConfigFileUsed(),
		EnvVarSet:  os.Getenv(envPrefix+"_DB") != "" && (opts.Database == nil || !opts.Database.Changed),
	}
	log.Debug().
		Str("path", cfg.DBPath).
		Str("config_file", cfg.ConfigFile).
		Bool("env", cfg.EnvVarSet).
		Msg("resolved configuration")
	return cfg, nil
}

// configDirs returns the working directory followed by the user config
// directory unless dirs overrides them.
func configDirs(dirs []string) []string {
	if len(dirs) > 0 {
		return dirs
	}
	out := []string{"."}
	if base, err := os.UserConfigDir(); err == nil {
		out = append(out, filepath.Join(base, configName))
	}
	return out
}

// Exists checks if the database file exists.
// It returns an error for non-existence failures (e.g. permission errors).
func (c *Config) Exists() (bool, error) {
	if _, err := os.Stat(c.DBPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
