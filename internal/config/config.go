// Package config defines the service-wide configuration tree. No I/O or
// parsing logic lives here, only plain data types and validation; loading is
// in loader.go.
package config

import (
	"time"

	cacheredis "github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/cache/redis"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/llm"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/messaging/kafka"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/logging"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/rank"
	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Config is the root of the service configuration tree. The Query and Rank
// sections are immutable snapshots once validated; a config-file change swaps
// in a whole new tree rather than mutating the running one.
type Config struct {
	Server ServerConfig      `mapstructure:"server"`
	Log    logging.LogConfig `mapstructure:"log"`

	Query *query.Config `mapstructure:"query"`
	Rank  *rank.Config  `mapstructure:"rank"`

	// CacheEnabled / EventsEnabled / ProbabilisticEnabled gate the optional
	// collaborators; a disabled collaborator is simply not constructed.
	CacheEnabled         bool `mapstructure:"cache_enabled"`
	EventsEnabled        bool `mapstructure:"events_enabled"`
	ProbabilisticEnabled bool `mapstructure:"probabilistic_enabled"`

	Redis *cacheredis.Config `mapstructure:"redis"`
	Kafka *kafka.Config      `mapstructure:"kafka"`
	LLM   *llm.Config        `mapstructure:"llm"`
}

// Validate checks the whole tree, including the nested query and rank
// snapshots. Validating the query section also freezes its version hash.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New(errors.ErrCodeConfigInvalid, "server.port out of range")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return errors.New(errors.ErrCodeConfigInvalid, "server.mode must be debug, release, or test")
	}
	if c.Query == nil {
		return errors.New(errors.ErrCodeConfigInvalid, "query section missing")
	}
	if err := c.Query.Validate(); err != nil {
		return err
	}
	if c.Rank == nil {
		return errors.New(errors.ErrCodeConfigInvalid, "rank section missing")
	}
	if err := c.Rank.Validate(); err != nil {
		return err
	}
	if c.CacheEnabled && (c.Redis == nil || c.Redis.Addr == "") {
		return errors.New(errors.ErrCodeConfigInvalid, "cache enabled but redis.addr empty")
	}
	if c.EventsEnabled && (c.Kafka == nil || len(c.Kafka.Brokers) == 0) {
		return errors.New(errors.ErrCodeConfigInvalid, "events enabled but kafka.brokers empty")
	}
	if c.ProbabilisticEnabled && (c.LLM == nil || c.LLM.BaseURL == "") {
		return errors.New(errors.ErrCodeConfigInvalid, "probabilistic extraction enabled but llm.base_url empty")
	}
	return nil
}
