package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/turtacn/ligandnet/pkg/errors"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "LIGANDNET"

var (
	ErrConfigFileNotFound = errors.New(errors.ErrCodeLigandIO, "config file not found")
	ErrConfigParseError   = errors.New(errors.ErrCodeSerialization, "config file could not be parsed")
	ErrConfigValidation   = errors.New(errors.ErrCodeValidation, "invalid configuration")
)

// newViper builds a pre-configured Viper instance: YAML file type,
// LIGANDNET_ env prefix, automatic env binding, and a key replacer that maps
// "." → "_" so that nested keys like "network.cutoff" resolve to
// "LIGANDNET_NETWORK_CUTOFF".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

// Load reads the YAML file at configPath, merges LIGANDNET_* environment
// overrides, applies defaults and validates the result.  An empty path
// behaves like LoadFromEnv.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	if _, err := os.Stat(configPath); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
		return nil, fmt.Errorf("config: failed to stat %q: %w", configPath, err)
	}

	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParseError, configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from defaults and LIGANDNET_* environment
// variables alone.
//
// Environment variable naming convention:
//
//	LIGANDNET_<SECTION>_<FIELD>   e.g.  LIGANDNET_NETWORK_CUTOFF, LIGANDNET_CACHE_BACKEND
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	return cfg, nil
}
