package connector

import (
	"context"
	"database/sql"

	"dbgateway/pkg/logger"
	"dbgateway/services/sqlguard"
)

// sqlConnector is the shared database/sql plumbing behind the engine
// variants. The handle is capped at one physical connection and serves
// exactly one logical operation before Disconnect releases it.
type sqlConnector struct {
	db *sql.DB
}

func (c *sqlConnector) open(driver, dsn string) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}
	c.db = db
	return nil
}

// Disconnect releases the connection handle. Safe to call on every exit
// path, including after a failed Connect.
func (c *sqlConnector) Disconnect() {
	if c.db == nil {
		return
	}
	if err := c.db.Close(); err != nil {
		logger.Errorf("Error during disconnect: %v", err)
	}
	c.db = nil
}

// run re-validates the query at the connector boundary and executes it
// with bound parameters only.
func (c *sqlConnector) run(query string, params ...any) (*ResultSet, error) {
	res, err := sqlguard.ValidateAndSanitize(query, params...)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.Query(res.Query, res.Params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

// collectRows drains a cursor into a ResultSet, keeping the driver's
// column names and type descriptors alongside the raw values.
func collectRows(rows *sql.Rows) (*ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types := make([]string, len(columns))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			types[i] = ct.DatabaseTypeName()
		}
	}

	rs := &ResultSet{Columns: columns, Types: types, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}
