// Package sqlgen produces and validates SQL candidates for a planned
// query intent: the LLM generation path, the deterministic template
// fallback, and the validation gate both paths must pass before execution.
package sqlgen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/quickcommerce/deals-engine/pkg/apperrors"
	"github.com/quickcommerce/deals-engine/pkg/models"
)

// forbiddenKeywords are statement forms that can never appear. Checked
// outside string literals only.
var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create", "truncate",
	"grant", "revoke", "attach", "pragma", "exec", "execute", "merge",
	"vacuum", "copy",
}

var limitClauseRe = regexp.MustCompile(`(?i)\blimit\s+(\d+)\b`)

// Validate checks a candidate statement against the intent's vetted table
// set and the row ceiling, returning the normalized statement and the
// tables it references. Rules:
//
//   - exactly one statement, SELECT-only (CTEs are rejected outright)
//   - every referenced table must be in intent.CandidateTables
//   - no mutating or administrative keywords anywhere outside literals
//   - string literals must pass the injection check
//   - a LIMIT must be present and within maxRows; a missing LIMIT is
//     appended at maxRows, an oversized one is clamped
//
// All failures wrap apperrors.ErrInvalidSQL.
func Validate(statement string, intent *models.QueryIntent, maxRows int) (string, []string, error) {
	normalized := strings.TrimSpace(statement)
	if normalized == "" {
		return "", nil, fmt.Errorf("empty statement: %w", apperrors.ErrInvalidSQL)
	}

	normalized = stripTrailingSemicolon(normalized)
	if hasSemicolonOutsideLiterals(normalized) {
		return "", nil, fmt.Errorf("multiple statements: %w", apperrors.ErrInvalidSQL)
	}

	masked := maskLiterals(normalized)
	lowerMasked := strings.ToLower(masked)

	if !strings.HasPrefix(strings.TrimSpace(lowerMasked), "select") {
		return "", nil, fmt.Errorf("not a SELECT statement: %w", apperrors.ErrInvalidSQL)
	}

	for _, kw := range forbiddenKeywords {
		if containsWord(lowerMasked, kw) {
			return "", nil, fmt.Errorf("forbidden keyword %q: %w", kw, apperrors.ErrInvalidSQL)
		}
	}

	for _, lit := range extractLiterals(normalized) {
		if isSQLi, fingerprint := libinjection.IsSQLi(lit); isSQLi {
			return "", nil, fmt.Errorf("injection pattern %q in literal: %w", fingerprint, apperrors.ErrInvalidSQL)
		}
	}

	referenced := referencedTables(masked)
	if len(referenced) == 0 {
		return "", nil, fmt.Errorf("no referenced tables found: %w", apperrors.ErrInvalidSQL)
	}
	for _, table := range referenced {
		if !intent.HasCandidate(table) {
			return "", nil, fmt.Errorf("table %q outside candidate set: %w", table, apperrors.ErrInvalidSQL)
		}
	}

	normalized, err := enforceLimit(normalized, masked, maxRows)
	if err != nil {
		return "", nil, err
	}

	return normalized, referenced, nil
}

func stripTrailingSemicolon(s string) string {
	s = strings.TrimRight(s, " \t\n\r")
	s = strings.TrimSuffix(s, ";")
	return strings.TrimRight(s, " \t\n\r")
}

// scanLiterals walks the statement calling outside for each byte outside
// a quoted region and literal once per completed single-quoted literal.
// A doubled quote inside a literal is the SQL escape for one quote, not a
// terminator.
func scanLiterals(s string, outside func(i int), literal func(content string)) {
	var current strings.Builder
	inSingle, inDouble := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					current.WriteByte('\'')
					i++
					continue
				}
				inSingle = false
				if literal != nil {
					literal(current.String())
				}
				current.Reset()
			} else {
				current.WriteByte(c)
			}
		case inDouble:
			if c == '"' {
				if i+1 < len(s) && s[i+1] == '"' {
					i++
					continue
				}
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		default:
			if outside != nil {
				outside(i)
			}
		}
	}
	// An unterminated literal is still inspected.
	if inSingle && literal != nil {
		literal(current.String())
	}
}

// hasSemicolonOutsideLiterals reports any semicolon remaining after
// normalization that is not inside a quoted literal, i.e. a second
// statement.
func hasSemicolonOutsideLiterals(s string) bool {
	found := false
	scanLiterals(s, func(i int) {
		if s[i] == ';' {
			found = true
		}
	}, nil)
	return found
}

// maskLiterals replaces quoted regions with spaces so keyword and table
// scans cannot be fooled by literal text.
func maskLiterals(s string) string {
	out := []byte(strings.Repeat(" ", len(s)))
	scanLiterals(s, func(i int) { out[i] = s[i] }, nil)
	return string(out)
}

// extractLiterals returns the contents of single-quoted literals with
// doubled-quote escapes decoded.
func extractLiterals(s string) []string {
	var literals []string
	scanLiterals(s, nil, func(content string) {
		literals = append(literals, content)
	})
	return literals
}

func containsWord(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		beforeOK := i == 0 || !isIdentRune(rune(s[i-1]))
		after := i + len(word)
		afterOK := after >= len(s) || !isIdentRune(rune(s[after]))
		if beforeOK && afterOK {
			return true
		}
		idx = i + len(word)
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// clauseKeywords end a FROM list. Any of these after a table item means
// there is no further comma-separated table to collect.
func isClauseKeyword(tok string) bool {
	switch strings.ToLower(strings.TrimRight(tok, ",)")) {
	case "where", "join", "inner", "left", "right", "full", "cross",
		"natural", "on", "group", "order", "having", "limit", "offset",
		"union", "intersect", "except":
		return true
	}
	return false
}

// referencedTables extracts table names following FROM and JOIN keywords,
// including comma-separated FROM lists with aliased items. Aliases and
// quoting are stripped. Input must already have literals masked.
func referencedTables(masked string) []string {
	// Commas become their own tokens so a comma attached to a table name,
	// an alias, or standing alone all parse the same way.
	fields := strings.Fields(strings.ReplaceAll(masked, ",", " , "))
	seen := make(map[string]struct{})
	var tables []string

	add := func(raw string) {
		name := strings.Trim(raw, `"`)
		name = strings.TrimRight(name, ")")
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[i+1:] // drop schema qualifier
		}
		name = strings.ToLower(name)
		if name == "" || strings.HasPrefix(name, "(") {
			return
		}
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			tables = append(tables, name)
		}
	}

	for i := 0; i < len(fields); i++ {
		switch strings.ToLower(fields[i]) {
		case "from":
			// FROM t1, t2 alias, t3 AS a
			j := i + 1
			for j < len(fields) {
				add(fields[j])
				// Skip alias tokens; the list continues only at a comma
				// before the next clause keyword.
				k := j + 1
				for k < len(fields) && fields[k] != "," && !isClauseKeyword(fields[k]) {
					k++
				}
				if k >= len(fields) || fields[k] != "," {
					break
				}
				j = k + 1
			}
		case "join":
			if i+1 < len(fields) {
				add(fields[i+1])
			}
		}
	}
	return tables
}

// enforceLimit guarantees a row bound: appends LIMIT maxRows when absent,
// clamps an oversized one. The clause is located on the masked statement so
// literal text can neither satisfy the bound nor be rewritten by the clamp,
// and only a top-level LIMIT counts; one inside a subquery does not bound
// the outer query.
func enforceLimit(statement, masked string, maxRows int) (string, error) {
	for _, m := range limitClauseRe.FindAllStringSubmatchIndex(masked, -1) {
		if parenDepth(masked, m[0]) != 0 {
			continue
		}
		n, err := strconv.Atoi(masked[m[2]:m[3]])
		if err != nil {
			return "", fmt.Errorf("unparsable LIMIT: %w", apperrors.ErrInvalidSQL)
		}
		if n > maxRows {
			// masked and statement are index-aligned.
			return statement[:m[2]] + strconv.Itoa(maxRows) + statement[m[3]:], nil
		}
		return statement, nil
	}
	return statement + fmt.Sprintf(" LIMIT %d", maxRows), nil
}

func parenDepth(s string, pos int) int {
	depth := 0
	for i := 0; i < pos; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return depth
}
