package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite3"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/reviewdesk/data/db/reviews.db"
	}
	if cfg.Storage.MaxOpenConns == 0 {
		cfg.Storage.MaxOpenConns = 10
	}
	if cfg.Storage.StatementTimeout == 0 {
		cfg.Storage.StatementTimeout = 5 * time.Second
	}
	if cfg.Search.IndexPath == "" {
		cfg.Search.IndexPath = "/usr/local/var/reviewdesk/data/indices/reviews"
	}
	if cfg.Search.DefaultSize == 0 {
		cfg.Search.DefaultSize = 10
	}
	if cfg.Search.MaxSize == 0 {
		cfg.Search.MaxSize = 100
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 3 * time.Second
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.Namespace == "" {
		cfg.Cache.Namespace = "review_service"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 1000
	}
	if cfg.Cache.Timeout == 0 {
		cfg.Cache.Timeout = 2 * time.Second
	}
	if cfg.Cache.Redis.Addr == "" {
		cfg.Cache.Redis.Addr = "localhost:6379"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "none"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.1
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.Analysis.MaxRounds == 0 {
		cfg.Analysis.MaxRounds = 10
	}
	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = 300 * time.Second
	}
	if cfg.Analysis.DigestLimit == 0 {
		cfg.Analysis.DigestLimit = 20
	}
	if cfg.Analysis.ExcerptLength == 0 {
		cfg.Analysis.ExcerptLength = 200
	}
	if cfg.Import.Workers == 0 {
		cfg.Import.Workers = 4
	}
	if cfg.Import.Extensions == nil {
		cfg.Import.Extensions = []string{".jsonl", ".ndjson", ".xlsx"}
	}
}
