package connector

import (
	"regexp"
	"time"
)

// Session defaults applied by every connector. Timeouts are enforced at
// the engine-session level rather than via caller cancellation.
const (
	connectTimeout   = 10 * time.Second
	statementTimeout = 30 * time.Second
)

var configStripPattern = regexp.MustCompile(`[;'"\\]`)

// NormalizeConfig strips dangerous characters from string fields and
// applies engine-specific quirks: PostgreSQL renames the generic username
// key to the driver's "user" and drops SSL parameters in plain deployment
// mode; Oracle falls back from database to service name; MySQL/MariaDB
// session hardening happens inside the connector itself.
func NormalizeConfig(engine Engine, cfg Config) Config {
	cfg.Host = configStripPattern.ReplaceAllString(cfg.Host, "")
	cfg.Username = configStripPattern.ReplaceAllString(cfg.Username, "")
	cfg.Password = configStripPattern.ReplaceAllString(cfg.Password, "")
	cfg.Database = configStripPattern.ReplaceAllString(cfg.Database, "")
	cfg.ServiceName = configStripPattern.ReplaceAllString(cfg.ServiceName, "")

	switch engine {
	case EnginePostgreSQL:
		// SSL is terminated upstream in the current deployment mode.
		cfg.SSLMode = "disable"
	case EngineOracle:
		if cfg.ServiceName == "" {
			cfg.ServiceName = cfg.Database
		}
	}
	return cfg
}
