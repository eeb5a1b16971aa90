package connector

import (
	"fmt"
	"strings"
)

// Engine identifies which SQL dialect/driver a connector variant speaks.
type Engine string

// Supported engine tags. MariaDB is a distinct tag that reuses the MySQL
// implementation, not a separate connector.
const (
	EngineMySQL      Engine = "mysql"
	EnginePostgreSQL Engine = "postgresql"
	EngineOracle     Engine = "oracle"
	EngineMariaDB    Engine = "mariadb"
)

// ParseEngine maps a caller-supplied engine tag onto the closed enum.
// Unknown tags are rejected at this boundary.
func ParseEngine(s string) (Engine, error) {
	switch Engine(strings.ToLower(strings.TrimSpace(s))) {
	case EngineMySQL:
		return EngineMySQL, nil
	case EnginePostgreSQL:
		return EnginePostgreSQL, nil
	case EngineOracle:
		return EngineOracle, nil
	case EngineMariaDB:
		return EngineMariaDB, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s (supported: mysql, postgresql, oracle, mariadb)", s)
	}
}

// String returns the engine tag as stored in database definitions.
func (e Engine) String() string {
	return string(e)
}

// Builder constructs a connector for an already-normalized config.
type Builder func(cfg Config) Connector

// Registry maps engine tags to connector builders. It is a fixed table
// built once at startup and passed by reference into the gateway; entries
// are never added or removed afterwards.
type Registry struct {
	builders map[Engine]Builder
}

// NewRegistry builds the default registry with the MySQL, PostgreSQL and
// Oracle connectors. MariaDB maps onto the MySQL builder.
func NewRegistry() *Registry {
	mysqlBuilder := func(cfg Config) Connector { return NewMySQLConnector(cfg) }
	return &Registry{
		builders: map[Engine]Builder{
			EngineMySQL:      mysqlBuilder,
			EngineMariaDB:    mysqlBuilder,
			EnginePostgreSQL: func(cfg Config) Connector { return NewPostgresConnector(cfg) },
			EngineOracle:     func(cfg Config) Connector { return NewOracleConnector(cfg) },
		},
	}
}

// NewRegistryWith builds a registry from an explicit builder table.
// Used by tests to substitute fake connectors.
func NewRegistryWith(builders map[Engine]Builder) *Registry {
	return &Registry{builders: builders}
}

// Get normalizes the config for the engine and returns a fresh connector.
// Every call returns a new instance; connectors are never cached.
func (r *Registry) Get(engine Engine, cfg Config) (Connector, error) {
	build, ok := r.builders[engine]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", engine)
	}
	return build(NormalizeConfig(engine, cfg)), nil
}
