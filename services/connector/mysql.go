package connector

import (
	"fmt"

	"github.com/go-sql-driver/mysql"

	"dbgateway/services/sqlguard"
)

// MySQLConnector speaks MySQL and MariaDB. The session is opened with
// conservative defaults: local-file access disabled, strict sql_mode and
// a statement-level execution timeout.
type MySQLConnector struct {
	sqlConnector
	cfg Config
}

// NewMySQLConnector builds a connector for an already-normalized config.
func NewMySQLConnector(cfg Config) *MySQLConnector {
	return &MySQLConnector{cfg: cfg}
}

// Connect opens a single physical session. Failures are returned raw; the
// caller routes them through the error classifier.
func (c *MySQLConnector) Connect() error {
	dc := mysql.NewConfig()
	dc.User = c.cfg.Username
	dc.Passwd = c.cfg.Password
	dc.Net = "tcp"
	dc.Addr = fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	dc.DBName = c.cfg.Database
	dc.Timeout = connectTimeout
	dc.ReadTimeout = statementTimeout
	dc.WriteTimeout = statementTimeout
	dc.AllowAllFiles = false
	dc.ParseTime = true
	dc.Params = map[string]string{
		"sql_mode":           "'NO_ENGINE_SUBSTITUTION,STRICT_TRANS_TABLES'",
		"max_execution_time": fmt.Sprintf("%d", statementTimeout.Milliseconds()),
	}
	return c.open("mysql", dc.FormatDSN())
}

// ExecuteQuery runs a validated read query with bound parameters.
func (c *MySQLConnector) ExecuteQuery(query string, params ...any) (*ResultSet, error) {
	return c.run(query, params...)
}

// GetSchema lists tables and their columns via SHOW TABLES / SHOW COLUMNS.
// Table names coming back from the catalog are sanitized before they are
// interpolated into the SHOW COLUMNS statement; MySQL does not accept a
// bound parameter there.
func (c *MySQLConnector) GetSchema() ([]TableSchema, error) {
	rows, err := c.db.Query("SHOW TABLES")
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
		safeName, err := sqlguard.SanitizeIdentifier(table)
		if err != nil {
			return nil, err
		}
		columns, err := c.tableColumns(safeName)
		if err != nil {
			return nil, err
		}
		schema = append(schema, TableSchema{TableName: table, Columns: columns})
	}
	return schema, nil
}

func (c *MySQLConnector) tableColumns(safeName string) ([]ColumnSchema, error) {
	rows, err := c.db.Query(fmt.Sprintf("SHOW COLUMNS FROM `%s`", safeName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnSchema
	for rows.Next() {
		var field, colType, null, key string
		var dflt, extra []byte
		if err := rows.Scan(&field, &colType, &null, &key, &dflt, &extra); err != nil {
			return nil, err
		}
		columns = append(columns, ColumnSchema{
			Name:     field,
			Type:     colType,
			Nullable: null == "YES",
			Key:      key,
			Default:  string(dflt),
			Extra:    string(extra),
		})
	}
	return columns, rows.Err()
}
