package connector

// Config holds the decrypted connection parameters for one external database.
// It only exists for the duration of a single gateway operation and is never
// persisted or logged in plaintext.
type Config struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Database    string `json:"database"`
	ServiceName string `json:"service_name,omitempty"` // Oracle service name, falls back to Database
	SSLMode     string `json:"ssl_mode,omitempty"`     // PostgreSQL ssl mode hint, stripped in plain deployments
	Options     string `json:"options,omitempty"`      // Extra engine session options
}

// ColumnSchema describes a single column in normalized, engine-independent form.
type ColumnSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Key      string `json:"key"`     // "" / "PRI" / "MUL"
	Default  string `json:"default"` // Declared default value, empty when none
	Extra    string `json:"extra"`   // auto_increment / identity annotations
}

// TableSchema is one table with its ordered column list.
// The shape is identical regardless of which engine produced it.
type TableSchema struct {
	TableName string         `json:"table_name"`
	Columns   []ColumnSchema `json:"columns"`
}

// ResultSet carries raw query output from a connector before the gateway
// normalizes the values for callers.
type ResultSet struct {
	Columns []string
	Types   []string // Driver-reported database type names, index-aligned with Columns
	Rows    [][]any
}

// Connector is the per-engine implementation that owns a single physical
// session. Each instance serves exactly one logical operation: callers
// Connect, run one query or schema extraction, then Disconnect. Instances
// are never shared between operations.
//
// Connect and ExecuteQuery return raw driver errors; the gateway routes
// them through the error classifier before they reach any caller.
type Connector interface {
	Connect() error
	Disconnect()
	ExecuteQuery(query string, params ...any) (*ResultSet, error)
	GetSchema() ([]TableSchema, error)
}
