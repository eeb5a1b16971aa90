package dberrors

import (
	"fmt"
	"regexp"
	"strings"
)

type classification struct {
	category Category
	message  string
}

type codeRule struct {
	code  string
	class classification
}

// Per-engine exact vendor-code tables. Codes are matched as substrings of
// the raw error text because drivers embed them in different envelopes.
// Ordered slices, not maps: when a raw message carries more than one code
// the first table entry wins, every time.
var postgresCodes = []codeRule{
	{"28000", classification{AuthenticationFailed, "Authentication failed. Please check your username and password."}},
	{"28P01", classification{AuthenticationFailed, "Incorrect password for user. Please check your password."}},
	{"3D000", classification{DatabaseNotFound, "The specified database does not exist. Please check the database name."}},
	{"08006", classification{ConnectionRefused, "Connection failed. The port number might be incorrect or PostgreSQL is not running."}},
	{"57P03", classification{MaxConnections, "The database has reached its maximum allowed connections."}},
	{"08001", classification{InvalidHost, "Could not connect to host. Please verify the hostname is correct."}},
	{"42501", classification{PermissionDenied, "User lacks required permissions. Please check user privileges."}},
	{"53300", classification{MaxConnections, "Too many connections. Please try again later."}},
	{"08004", classification{PermissionDenied, "Server rejected the connection. Check host-based authentication configuration."}},
}

var mysqlCodes = []codeRule{
	{"2005", classification{InvalidHost, "Could not connect to MySQL server. The host address appears to be incorrect."}},
	{"2003", classification{ConnectionRefused, "Connection refused. The port number might be incorrect or MySQL is not running."}},
	{"1045", classification{AuthenticationFailed, "Access denied. The username or password is incorrect."}},
	{"1044", classification{PermissionDenied, "Access denied to database. User lacks required permissions."}},
	{"1049", classification{DatabaseNotFound, "The specified database does not exist. Please check the database name."}},
	{"1042", classification{InvalidHost, "Unable to connect to MySQL server through TCP/IP. Check hostname and network."}},
	{"1251", classification{AuthenticationFailed, "Client authentication method is not supported. Check authentication settings."}},
	{"1040", classification{MaxConnections, "Too many connections. Maximum connection limit reached."}},
}

var oracleCodes = []codeRule{
	{"ORA-12545", classification{InvalidHost, "Unable to connect. The host address appears to be incorrect."}},
	{"ORA-12541", classification{ConnectionRefused, "No listener. The port number might be incorrect or the listener is not running."}},
	{"ORA-01017", classification{AuthenticationFailed, "Invalid username or password. Please check your credentials."}},
	{"ORA-12505", classification{DatabaseNotFound, "Database (SID) does not exist. Please check the database name/SID."}},
	{"ORA-01031", classification{PermissionDenied, "Insufficient privileges. User lacks required permissions."}},
	{"ORA-12170", classification{Timeout, "Connect timeout occurred. Check network and database availability."}},
	{"ORA-12514", classification{DatabaseNotFound, "Service name not found. Please verify the database service name."}},
	{"ORA-12504", classification{DatabaseNotFound, "TNS Listener was not given the SERVICE_NAME. Check database configuration."}},
	{"ORA-12520", classification{MaxConnections, "Maximum number of connections exceeded. Try again later."}},
}

type keywordRule struct {
	pattern *regexp.Regexp
	key     string
	class   classification
}

// Shared keyword/regex fallback applied when no exact vendor code hits.
// Engine-agnostic: these phrases show up across drivers and OS sockets.
var keywordRules = []keywordRule{
	{regexp.MustCompile(`could not connect to server`), "could not connect to server",
		classification{ConnectionRefused, "Unable to connect to the database server. Please verify the host and port."}},
	{regexp.MustCompile(`network unreachable|no such host`), "network unreachable",
		classification{InvalidHost, "Network is unreachable. The host address appears to be incorrect."}},
	{regexp.MustCompile(`connection refused`), "connection refused",
		classification{ConnectionRefused, "Connection refused. The port number might be incorrect or the server is not running."}},
	{regexp.MustCompile(`invalid port`), "invalid port",
		classification{InvalidPort, "The specified port number is invalid or incorrect."}},
	{regexp.MustCompile(`password authentication failed`), "password authentication failed",
		classification{AuthenticationFailed, "The provided password is incorrect."}},
	{regexp.MustCompile(`role .* does not exist`), "role does not exist",
		classification{AuthenticationFailed, "The specified username does not exist."}},
	{regexp.MustCompile(`database .* does not exist`), "database does not exist",
		classification{DatabaseNotFound, "The specified database does not exist."}},
	{regexp.MustCompile(`host .* is not allowed`), "host not allowed",
		classification{PermissionDenied, "Connection not allowed from this host. Check host-based authentication configuration."}},
	{regexp.MustCompile(`timeout expired|i/o timeout|deadline exceeded`), "timeout expired",
		classification{Timeout, "Connection timed out. The server might be down or there are network issues."}},
	{regexp.MustCompile(`ssl required`), "ssl required",
		classification{ConnectionRefused, "SSL connection is required. Please enable SSL or check SSL configuration."}},
}

const unknownMessage = "Failed to connect to the database. Please verify all connection details."

// Handler classifies vendor errors for one engine: exact code table first,
// shared keyword fallback second, UNKNOWN with a generic message last.
type Handler struct {
	engine string
	codes  []codeRule
}

// NewHandler returns the classifier for an engine tag. MariaDB shares the
// MySQL code table. Unknown tags are rejected. The tag is a plain string
// rather than the connector enum so this package stays import-free of the
// connector layer, which itself reports errors through here.
func NewHandler(engine string) (*Handler, error) {
	switch strings.ToLower(engine) {
	case "mysql", "mariadb":
		return &Handler{engine: engine, codes: mysqlCodes}, nil
	case "postgresql":
		return &Handler{engine: engine, codes: postgresCodes}, nil
	case "oracle":
		return &Handler{engine: engine, codes: oracleCodes}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", engine)
	}
}

// Classify maps a raw driver error into the stable taxonomy. The raw text
// goes into Details for server-side diagnostics; Message never contains
// vendor internals or credentials.
func (h *Handler) Classify(err error) Record {
	return h.ClassifyMessage(err.Error())
}

// ClassifyMessage is Classify for callers that only hold the raw text.
func (h *Handler) ClassifyMessage(raw string) Record {
	lower := strings.ToLower(raw)

	for _, rule := range h.codes {
		if strings.Contains(lower, strings.ToLower(rule.code)) {
			return Record{Category: rule.class.category, Message: rule.class.message, ErrorCode: rule.code, Details: raw}
		}
	}
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(lower) {
			code := "KEYWORD_" + strings.ToUpper(strings.ReplaceAll(rule.key, " ", "_"))
			return Record{Category: rule.class.category, Message: rule.class.message, ErrorCode: code, Details: raw}
		}
	}
	return Record{Category: Unknown, Message: unknownMessage, ErrorCode: "UNKNOWN", Details: raw}
}
