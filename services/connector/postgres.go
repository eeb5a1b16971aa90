package connector

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// PostgresConnector speaks PostgreSQL. The session is opened read-only
// with a statement timeout; catalog access uses bound parameters only.
type PostgresConnector struct {
	sqlConnector
	cfg Config
}

// NewPostgresConnector builds a connector for an already-normalized config.
func NewPostgresConnector(cfg Config) *PostgresConnector {
	return &PostgresConnector{cfg: cfg}
}

// Connect opens a single physical session. The required connection fields
// are checked before dialing; failures are returned raw for the caller to
// classify.
func (c *PostgresConnector) Connect() error {
	var missing []string
	if c.cfg.Host == "" {
		missing = append(missing, "host")
	}
	if c.cfg.Port == 0 {
		missing = append(missing, "port")
	}
	if c.cfg.Username == "" {
		missing = append(missing, "user")
	}
	if c.cfg.Database == "" {
		missing = append(missing, "database")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required PostgreSQL connection parameters: %s", strings.Join(missing, ", "))
	}

	options := fmt.Sprintf("-c statement_timeout=%d -c default_transaction_read_only=on",
		statementTimeout.Milliseconds())
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password='%s' dbname=%s sslmode=%s connect_timeout=%d application_name=dbgateway options='%s'",
		c.cfg.Host, c.cfg.Port, c.cfg.Username, c.cfg.Password, c.cfg.Database,
		c.cfg.SSLMode, int(connectTimeout.Seconds()), options,
	)
	return c.open("postgres", dsn)
}

// ExecuteQuery runs a validated read query with bound parameters.
func (c *PostgresConnector) ExecuteQuery(query string, params ...any) (*ResultSet, error) {
	return c.run(query, params...)
}

// GetSchema introspects the public schema through information_schema.
// Primary-key membership comes from a correlated subquery against
// key_column_usage; PostgreSQL has no direct column flag for it.
func (c *PostgresConnector) GetSchema() ([]TableSchema, error) {
	rows, err := c.db.Query(
		`SELECT table_name FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name`,
		"public")
	if err != nil {
		return nil, err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schema := make([]TableSchema, 0, len(tables))
	for _, table := range tables {
		columns, err := c.tableColumns(table)
		if err != nil {
			return nil, err
		}
		schema = append(schema, TableSchema{TableName: table, Columns: columns})
	}
	return schema, nil
}

func (c *PostgresConnector) tableColumns(table string) ([]ColumnSchema, error) {
	rows, err := c.db.Query(`
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			(SELECT CASE WHEN COUNT(*) > 0 THEN 'PRI' ELSE '' END
			 FROM information_schema.key_column_usage kcu
			 JOIN information_schema.table_constraints tc
			   ON kcu.constraint_name = tc.constraint_name
			 WHERE tc.constraint_type = 'PRIMARY KEY'
			   AND kcu.table_name = $1
			   AND kcu.column_name = c.column_name) AS key_type
		FROM information_schema.columns c
		WHERE c.table_name = $2
		ORDER BY c.ordinal_position`, table, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnSchema
	for rows.Next() {
		var name, dataType, nullable, key string
		var dflt sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable, &dflt, &key); err != nil {
			return nil, err
		}
		col := ColumnSchema{
			Name:     name,
			Type:     dataType,
			Nullable: nullable == "YES",
			Key:      key,
		}
		if dflt.Valid {
			col.Default = dflt.String
		}
		// Identity/serial columns show up through their default expression.
		if strings.HasPrefix(col.Default, "nextval(") {
			col.Extra = "auto_increment"
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}
