package store

import "animabook/internal/platform/config"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int
}

// CHConfig configures the optional clickhouse audit backend
type CHConfig struct {
	Enabled bool
	URL     string
}

// FromConf builds a Config from env, PG under SERVICE_PGSQL_*, CH under SERVICE_CH_*
func FromConf(cfg config.Conf, appName string) Config {
	pgc := cfg.Prefix("SERVICE_PGSQL_")
	chc := cfg.Prefix("SERVICE_CH_")
	chURL := chc.MayString("URL", "")
	return Config{
		AppName: appName,
		PG: PGConfig{
			Enabled:     true,
			URL:         pgc.MustString("URL"),
			MaxConns:    int32(pgc.MayInt("MAX_CONNS", 8)),
			LogSQL:      pgc.MayBool("LOG_SQL", false),
			SlowQueryMs: pgc.MayInt("SLOW_MS", 250),
		},
		CH: CHConfig{
			Enabled: chURL != "",
			URL:     chURL,
		},
	}
}
