package miscutils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/hengadev/errsx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfigFromEnvironment reads the MISCUTILS_* variables and returns a
// validated Config. Unset variables keep their defaults.
//
//	export MISCUTILS_CODEC=pickle
//	export MISCUTILS_CACHE_TTL=24h
//	export MISCUTILS_PASSWORD_FILE=/run/secrets/miscutils
func LoadConfigFromEnvironment() (Config, error) {
	var errs errsx.Map
	cfg := Config{
		Codec:        getEnvOrDefault(EnvCodec, DefaultCodec),
		LogLevel:     getEnvOrDefault(EnvLogLevel, DefaultLogLevel),
		LogFormat:    getEnvOrDefault(EnvLogFormat, DefaultLogFormat),
		PasswordFile: os.Getenv(EnvPasswordFile),
		Salt:         os.Getenv(EnvSalt),
	}

	if v := os.Getenv(EnvMaxDepth); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil {
			errs.Set(EnvMaxDepth, fmt.Errorf("not an integer: %q", v))
		}
		cfg.MaxDepth = depth
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			errs.Set(EnvCacheTTL, fmt.Errorf("not a duration: %q", v))
		}
		cfg.CacheTTL = ttl
	}
	if err := errs.AsError(); err != nil {
		return Config{}, newConfigurationError("%v", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, wrapValidation(err)
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML config file and returns it validated.
//
//	codec: pickle
//	max_depth: 5000
//	log_level: debug
//	cache_ttl: 12h
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, newConfigurationError("read config file: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, newConfigurationError("parse config file %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, wrapValidation(err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. With no paths it
// loads ./.env and ignores its absence.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && len(paths) == 0 && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return newConfigurationError("load env file: %v", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
