package sqlcheck

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/askdb/pkg/model"
)

// mutatingKeywords are statement keywords that can change data or
// schema. Generated SQL is untrusted, so any top-level occurrence
// (outside string literals) rejects the statement.
var mutatingKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"ALTER":    true,
	"CREATE":   true,
	"TRUNCATE": true,
	"MERGE":    true,
}

// ExtractAndValidate is the trust boundary between model output and
// execution. It strips decoration from the raw text and confirms the
// remainder is a single read-only statement referencing only known
// tables. Rejections mark the result invalid with a reason; they never
// return an error, since bad model output is an expected condition.
func ExtractAndValidate(raw string, schema *model.Schema) *model.GeneratedSQL {
	gen := &model.GeneratedSQL{Raw: raw}

	sql := Apply(raw, StripFences, TrimSpace)
	gen.SQL = sql

	if sql == "" {
		return reject(gen, "model returned no SQL")
	}

	if n := countStatements(sql); n > 1 {
		return reject(gen, fmt.Sprintf("expected a single statement, found %d", n))
	}

	tokens := tokenize(sql)
	if len(tokens) == 0 {
		return reject(gen, "model returned no SQL")
	}

	for _, token := range tokens {
		if upper := strings.ToUpper(token); mutatingKeywords[upper] {
			return reject(gen, fmt.Sprintf("contains mutating keyword %s; only read-only queries are allowed", upper))
		}
	}

	if first := strings.ToUpper(tokens[0]); first != "SELECT" && first != "WITH" {
		return reject(gen, fmt.Sprintf("statement must start with SELECT or WITH, got %s", first))
	}

	if reason := checkIdentifiers(tokens, schema); reason != "" {
		return reject(gen, reason)
	}

	gen.Valid = true
	return gen
}

func reject(gen *model.GeneratedSQL, reason string) *model.GeneratedSQL {
	gen.Valid = false
	gen.Reason = reason
	return gen
}

// countStatements counts non-empty statements split on top-level
// semicolons, outside string literals. A trailing semicolon does not
// start a new statement.
func countStatements(sql string) int {
	var statements int
	var content bool

	var inString rune
	for i := 0; i < len(sql); i++ {
		c := rune(sql[i])
		if inString != 0 {
			if c == inString {
				inString = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			inString = c
			content = true
		case c == ';':
			if content {
				statements++
			}
			content = false
		case !isSpace(c):
			content = true
		}
	}
	if content {
		statements++
	}

	return statements
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// tokenize splits SQL into identifier/keyword tokens and single-rune
// punctuation tokens, skipping string literal contents
func tokenize(sql string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	var inString rune
	for _, c := range sql {
		if inString != 0 {
			if c == inString {
				inString = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			flush()
			inString = c
		case c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			current.WriteRune(c)
		case isSpace(c):
			flush()
		default:
			flush()
			tokens = append(tokens, string(c))
		}
	}
	flush()

	return tokens
}

// Tables returns the identifiers referenced as tables (the token after
// each FROM/JOIN, skipping subqueries and CTE names), lowercased and
// deduplicated
func Tables(sql string) []string {
	tokens := tokenize(sql)
	ctes := cteNames(tokens)

	seen := make(map[string]bool)
	var tables []string
	for i, token := range tokens {
		upper := strings.ToUpper(token)
		if upper != "FROM" && upper != "JOIN" {
			continue
		}
		if i+1 >= len(tokens) || tokens[i+1] == "(" {
			continue
		}
		name := strings.ToLower(tableName(tokens, i+1))
		if name == "" || ctes[name] {
			continue
		}
		if !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}

	return tables
}

// cteNames collects names defined by common table expressions, found as
// `name AS (` sequences, so later references to them are not mistaken
// for unknown tables
func cteNames(tokens []string) map[string]bool {
	names := make(map[string]bool)
	for i := 0; i+2 < len(tokens); i++ {
		if strings.EqualFold(tokens[i+1], "AS") && tokens[i+2] == "(" {
			names[strings.ToLower(tokens[i])] = true
		}
	}
	return names
}

// tableName resolves a possibly qualified name starting at idx and
// returns its final component
func tableName(tokens []string, idx int) string {
	name := tokens[idx]
	for idx+2 < len(tokens) && tokens[idx+1] == "." {
		name = tokens[idx+2]
		idx += 2
	}
	return name
}

// checkIdentifiers cross-checks referenced tables, and columns in
// table-qualified references, against the known schema. An empty schema
// disables the check. It returns a reason string on mismatch.
func checkIdentifiers(tokens []string, schema *model.Schema) string {
	if schema == nil || len(schema.Tables) == 0 {
		return ""
	}

	ctes := cteNames(tokens)
	for i, token := range tokens {
		upper := strings.ToUpper(token)
		if upper != "FROM" && upper != "JOIN" {
			continue
		}
		if i+1 >= len(tokens) || tokens[i+1] == "(" {
			continue
		}
		name := tableName(tokens, i+1)
		if ctes[strings.ToLower(name)] {
			continue
		}
		if schema.Lookup(name) == nil {
			return fmt.Sprintf("unknown table %q", name)
		}
	}

	// Qualified column references: table.column where the qualifier is
	// a known table. Unqualified columns are not resolvable without a
	// full SQL parser and stay unchecked.
	for i := 0; i+2 < len(tokens); i++ {
		if tokens[i+1] != "." {
			continue
		}
		table := schema.Lookup(tokens[i])
		if table == nil {
			continue
		}
		column := tokens[i+2]
		if column == "*" || table.HasColumn(column) {
			continue
		}
		return fmt.Sprintf("unknown column %q in table %q", column, table.Name)
	}

	return ""
}
