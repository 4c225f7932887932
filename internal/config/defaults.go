package config

import (
	"time"

	cacheredis "github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/cache/redis"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/llm"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/messaging/kafka"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/rank"
)

// Default returns the complete default configuration tree. With the default
// toggles every external collaborator is off, so the service runs with the
// deterministic pipeline alone.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			MaxBodySize:     1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Query: query.DefaultConfig(),
		Rank:  rank.DefaultConfig(),
		Redis: cacheredis.DefaultConfig(),
		Kafka: kafka.DefaultConfig(),
		LLM:   llm.DefaultConfig(),
	}
}

// ApplyDefaults fills unset fields of cfg from Default. Only zero values are
// replaced; explicit settings always win.
func ApplyDefaults(cfg *Config) {
	def := Default()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = def.Server.Mode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = def.Server.MaxBodySize
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	if cfg.Query == nil {
		cfg.Query = def.Query
	}
	if cfg.Rank == nil {
		cfg.Rank = def.Rank
	}
	if cfg.Redis == nil {
		cfg.Redis = def.Redis
	}
	if cfg.Kafka == nil {
		cfg.Kafka = def.Kafka
	}
	if cfg.LLM == nil {
		cfg.LLM = def.LLM
	}
}
