package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// envPrefix is the environment variable prefix for all service settings.
const envPrefix = "CPMS"

// newViper builds a pre-configured Viper instance: YAML file type, CPMS_ env
// prefix, automatic env binding, and a key replacer that maps "." to "_" so
// nested keys like "server.port" resolve to "CPMS_SERVER_PORT".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Viper only consults the environment for keys it knows about, so the
	// env-overridable keys are registered here with zero defaults;
	// ApplyDefaults fills the real values afterwards.
	for _, key := range []string{
		"server.port", "server.mode",
		"server.read_timeout", "server.write_timeout", "server.shutdown_timeout",
		"log.level", "log.format",
		"cache_enabled", "events_enabled", "probabilistic_enabled",
		"redis.addr", "redis.password", "redis.db",
		"kafka.brokers", "kafka.acks",
		"kafka.sasl_enabled", "kafka.sasl_mechanism", "kafka.sasl_username", "kafka.sasl_password",
		"llm.base_url", "llm.api_key", "llm.model",
	} {
		v.SetDefault(key, nil)
	}
	return v
}

// Load reads the YAML file at configPath, merges CPMS_* environment variable
// overrides, applies defaults for unset fields, and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "read config file "+configPath)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from CPMS_* environment variables and
// defaults, with no config file. This is the loading strategy for
// containerized deployments.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "unmarshal configuration")
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the freshly parsed tree
// whenever the file changes and still validates. An edit that fails to parse
// or validate is reported to onError and the running config stays in place.
//
// Watch is non-blocking; viper manages the background goroutine.
func Watch(configPath string, onChange func(*Config), onError func(error)) {
	v := newViper()
	v.SetConfigFile(configPath)
	_ = v.ReadInConfig()

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// MustLoad wraps Load and panics on error. For use in main, where a config
// failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic("config: " + err.Error())
	}
	return cfg
}
