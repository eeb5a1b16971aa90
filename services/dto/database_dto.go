package dto

import "dbgateway/services/connector"

// ConnectionConfigRequest carries the plaintext connection parameters of
// a create/update/test request. It exists only inside the request scope;
// the gateway encrypts it before anything is persisted.
type ConnectionConfigRequest struct {
	Host        string `json:"host" validate:"required"`
	Port        int    `json:"port" validate:"required,min=1,max=65535"`
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	Database    string `json:"database" validate:"required"`
	ServiceName string `json:"service_name,omitempty"`
	Options     string `json:"options,omitempty"`
}

// ToConfig converts the request payload into the connector config record.
func (r ConnectionConfigRequest) ToConfig() connector.Config {
	return connector.Config{
		Host:        r.Host,
		Port:        r.Port,
		Username:    r.Username,
		Password:    r.Password,
		Database:    r.Database,
		ServiceName: r.ServiceName,
		Options:     r.Options,
	}
}

// DatabaseCreateRequest registers a new database definition.
type DatabaseCreateRequest struct {
	Name          string                  `json:"name" validate:"required,max=255"`
	DatabaseType  string                  `json:"database_type" validate:"required"`
	Configuration ConnectionConfigRequest `json:"configuration" validate:"required"`
}

// DatabaseUpdateRequest mutates an existing definition. Nil fields are
// left untouched; changing configuration or engine triggers a
// connectivity re-test.
type DatabaseUpdateRequest struct {
	DatabaseName  string                   `json:"database_name" validate:"required"`
	NewName       string                   `json:"new_name,omitempty"`
	DatabaseType  string                   `json:"database_type,omitempty"`
	Configuration *ConnectionConfigRequest `json:"configuration,omitempty"`
}

// DatabaseQueryRequest executes a read query against a definition.
type DatabaseQueryRequest struct {
	DatabaseName string `json:"database_name" validate:"required,max=255"`
	Query        string `json:"query" validate:"required"`
}

// ConnectionTestRequest probes connectivity without persisting anything.
type ConnectionTestRequest struct {
	DatabaseType  string                  `json:"database_type" validate:"required"`
	Configuration ConnectionConfigRequest `json:"configuration" validate:"required"`
}

// QueryResult is the normalized row set handed to the external result
// formatter: decimal values as strings, timestamps in RFC 3339, binary
// data hex-encoded.
type QueryResult struct {
	Results       []map[string]any `json:"results"`
	Columns       []string         `json:"columns"`
	Query         string           `json:"query"`
	ExecutionTime float64          `json:"execution_time"`
	RowCount      int              `json:"row_count"`
}
