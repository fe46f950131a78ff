package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:       "~/.config/histry",
			SQLiteFile: "histry.db",
		},
		Query: QueryConfig{
			PerPage:         10,
			CacheTTLSeconds: 5,
			CacheSize:       64,
		},
		Retention: RetentionConfig{
			Days: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
