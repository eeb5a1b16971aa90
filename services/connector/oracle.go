package connector

import (
	"database/sql"
	"fmt"

	_ "github.com/godror/godror"

	"dbgateway/pkg/logger"
)

// OracleConnector speaks Oracle through godror. The connection targets a
// service name, falling back to the configured database name.
type OracleConnector struct {
	sqlConnector
	cfg Config
}

// NewOracleConnector builds a connector for an already-normalized config.
func NewOracleConnector(cfg Config) *OracleConnector {
	return &OracleConnector{cfg: cfg}
}

// Connect opens a single physical session and applies the hardened
// session parameters the gateway requires.
func (c *OracleConnector) Connect() error {
	dsn := fmt.Sprintf(
		`user="%s" password="%s" connectString="%s:%d/%s" standaloneConnection=1 timeout=%ds`,
		c.cfg.Username, c.cfg.Password, c.cfg.Host, c.cfg.Port, c.cfg.ServiceName,
		int(connectTimeout.Seconds()),
	)
	if err := c.open("godror", dsn); err != nil {
		return err
	}

	for _, stmt := range []string{
		"ALTER SESSION SET CURSOR_SHARING = FORCE",
		"ALTER SESSION SET SQL_TRACE = FALSE",
	} {
		if _, err := c.db.Exec(stmt); err != nil {
			logger.Warnf("Oracle session parameter failed (%s): %v", stmt, err)
		}
	}
	return nil
}

// ExecuteQuery runs a validated read query with bound parameters.
func (c *OracleConnector) ExecuteQuery(query string, params ...any) (*ResultSet, error) {
	return c.run(query, params...)
}

// GetSchema introspects the session user's tables. Primary-key membership
// comes from the user_constraints/user_cons_columns join; identity
// columns map into the extra annotation.
func (c *OracleConnector) GetSchema() ([]TableSchema, error) {
	rows, err := c.db.Query("SELECT table_name FROM user_tables ORDER BY table_name")
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

func (c *OracleConnector) tableColumns(table string) ([]ColumnSchema, error) {
	rows, err := c.db.Query(`
		SELECT
			c.column_name,
			c.data_type,
			c.nullable,
			c.data_default,
			c.identity_column,
			(SELECT 'PRI'
			 FROM user_constraints uc
			 JOIN user_cons_columns ucc ON uc.constraint_name = ucc.constraint_name
			 WHERE uc.constraint_type = 'P'
			   AND uc.table_name = :1
			   AND ucc.column_name = c.column_name
			   AND ROWNUM = 1) AS key_type
		FROM user_tab_columns c
		WHERE c.table_name = :2
		ORDER BY c.column_id`, table, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnSchema
	for rows.Next() {
		var name, dataType, nullable string
		var dflt, identity, key sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable, &dflt, &identity, &key); err != nil {
			return nil, err
		}
		col := ColumnSchema{
			Name:     name,
			Type:     dataType,
			Nullable: nullable == "Y",
			Key:      key.String,
			Default:  dflt.String,
		}
		if identity.String == "YES" {
			col.Extra = "identity"
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}
