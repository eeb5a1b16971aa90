// Package sqlguard validates and sanitizes SQL text before any connector
// touches the network. It enforces an allow-list-first policy with a
// deny-list of known attack idioms on top; it is a security boundary, not
// a full SQL grammar validator, so ambiguous input is rejected rather
// than accepted best-effort.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"

	"dbgateway/services/dberrors"
)

// Result is a sanitized query plus its sanitized bound parameters.
type Result struct {
	Query  string
	Params []any
}

type denyRule struct {
	pattern *regexp.Regexp
	name    string
}

// Known attack idioms, scanned case-insensitively even when the allow-list
// stage passed. The matched rule name is logged, never echoed to callers.
var denyRules = []denyRule{
	{regexp.MustCompile(`--`), "sql comment"},
	{regexp.MustCompile(`(?s)/\*.*?\*/`), "block comment"},
	{regexp.MustCompile(`(?i)UNION\s+ALL\s+SELECT`), "union select"},
	{regexp.MustCompile(`(?i)\bOR\s+1\s*=\s*1\b`), "always-true predicate"},
	{regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`), "drop table"},
	{regexp.MustCompile(`(?i)\bDELETE\s+FROM\b`), "delete from"},
	{regexp.MustCompile(`(?i)\bUPDATE\s+.*\bSET\b`), "update set"},
	{regexp.MustCompile(`(?i)\bEXECUTE\s+IMMEDIATE\b`), "dynamic execution"},
	{regexp.MustCompile(`(?i)\bEXEC\s+xp_`), "extended procedure"},
	{regexp.MustCompile(`(?i)xp_cmdshell`), "command shell"},
}

// allowedKeywords is the positive security model: every recognized SQL
// keyword in a statement must appear here. Multi-word constructs (GROUP
// BY, LEFT JOIN) are covered word by word.
var allowedKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "FROM": true, "WHERE": true,
	"GROUP": true, "BY": true, "HAVING": true, "ORDER": true,
	"LIMIT": true, "OFFSET": true,
	"JOIN": true, "LEFT": true, "RIGHT": true, "INNER": true,
	"OUTER": true, "FULL": true, "CROSS": true, "ON": true,
	"AND": true, "OR": true, "NOT": true, "IN": true,
	"BETWEEN": true, "LIKE": true, "AS": true,
	"DISTINCT": true, "IS": true, "NULL": true,
	"ASC": true, "DESC": true, "CASE": true, "WHEN": true,
	"THEN": true, "ELSE": true, "END": true, "EXISTS": true,
	"UNION": false, // recognized so the allow-list rejects it even alone
}

// recognizedKeywords is the superset used to decide whether a word token
// is a SQL keyword at all; words outside it are identifiers and pass.
var recognizedKeywords = map[string]bool{}

func init() {
	for kw := range allowedKeywords {
		recognizedKeywords[kw] = true
	}
	for _, kw := range []string{
		"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
		"TRUNCATE", "GRANT", "REVOKE", "MERGE", "REPLACE", "CALL",
		"EXEC", "EXECUTE", "SET", "INTO", "VALUES", "COMMIT",
		"ROLLBACK", "SAVEPOINT", "LOCK", "UNLOCK", "RENAME",
		"DECLARE", "USE", "SHUTDOWN", "KILL",
	} {
		recognizedKeywords[kw] = true
	}
}

var (
	wordPattern      = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	identKeepPattern = regexp.MustCompile(`[^A-Za-z0-9_]`)
	paramStripChars  = regexp.MustCompile(`[;'"\\]`)
	wildcardChars    = regexp.MustCompile(`[%_]`)
)

// ValidateAndSanitize applies the full validation pipeline to a query and
// its bound parameters. Rejections are dberrors.GatewayError values with
// KindSecurity and the triggering rule recorded for diagnostics.
func ValidateAndSanitize(query string, params ...any) (Result, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Result{}, dberrors.Security("empty or invalid SQL query", "empty query")
	}

	stmt, err := singleStatement(trimmed)
	if err != nil {
		return Result{}, err
	}

	if err := checkStatementType(stmt); err != nil {
		return Result{}, err
	}
	if err := checkDenyList(stmt); err != nil {
		return Result{}, err
	}
	if err := checkAllowList(stmt); err != nil {
		return Result{}, err
	}

	return Result{Query: stmt, Params: SanitizeParams(params)}, nil
}

// singleStatement enforces the one-statement rule: any semicolon followed
// by further content rejects; a single trailing semicolon is stripped.
func singleStatement(query string) (string, error) {
	stripped := stripStringLiterals(query)
	if strings.Count(stripped, ";") > 1 {
		return "", dberrors.Security("multiple SQL statements are not allowed", "stacked statements")
	}
	if idx := strings.Index(stripped, ";"); idx >= 0 {
		// Stripping is length-preserving, so idx addresses the same byte
		// in the original text. The remainder is checked on the original:
		// a quoted literal after the separator is still stacked content.
		if strings.TrimSpace(query[idx+1:]) != "" {
			return "", dberrors.Security("multiple SQL statements are not allowed", "stacked statements")
		}
		query = strings.TrimSpace(query[:idx])
	}
	return query, nil
}

// stripStringLiterals blanks out single- and double-quoted literals so
// that semicolons and keywords inside data do not trip the checks.
// An unterminated quote leaves the remainder blanked, which is the
// conservative direction for a security filter.
func stripStringLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(s) {
				b.WriteString("  ")
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			b.WriteByte(' ')
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func checkStatementType(stmt string) error {
	first := wordPattern.FindString(stripStringLiterals(stmt))
	switch strings.ToUpper(first) {
	case "SELECT", "WITH":
		return nil
	default:
		return dberrors.Security("only SELECT queries are allowed", "non-select statement")
	}
}

func checkDenyList(stmt string) error {
	for _, rule := range denyRules {
		if rule.pattern.MatchString(stmt) {
			return dberrors.Security("query contains a forbidden construct", rule.name)
		}
	}
	return nil
}

func checkAllowList(stmt string) error {
	for _, word := range wordPattern.FindAllString(stripStringLiterals(stmt), -1) {
		upper := strings.ToUpper(word)
		if !recognizedKeywords[upper] {
			continue // identifier, function name, alias
		}
		if !allowedKeywords[upper] {
			return dberrors.Security(
				fmt.Sprintf("unauthorized SQL operation: %s", upper),
				"keyword outside allow-list")
		}
	}
	return nil
}

// SanitizeParams sanitizes string parameters for safe binding: quote,
// backslash and semicolon characters are stripped and LIKE wildcards are
// escaped. Non-string parameters pass through unchanged.
func SanitizeParams(params []any) []any {
	if len(params) == 0 {
		return nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		if s, ok := p.(string); ok {
			out[i] = SanitizeParam(s)
		} else {
			out[i] = p
		}
	}
	return out
}

// SanitizeParam sanitizes a single string parameter value.
func SanitizeParam(s string) string {
	s = paramStripChars.ReplaceAllString(s, "")
	return wildcardChars.ReplaceAllStringFunc(s, func(m string) string {
		return `\` + m
	})
}

// SanitizeIdentifier strips everything outside [A-Za-z0-9_] from a table
// or column name. An empty result after stripping is a hard failure; the
// identifier was not salvageable.
func SanitizeIdentifier(identifier string) (string, error) {
	sanitized := identKeepPattern.ReplaceAllString(identifier, "")
	if sanitized == "" {
		return "", fmt.Errorf("invalid SQL identifier: %q", identifier)
	}
	return sanitized, nil
}
