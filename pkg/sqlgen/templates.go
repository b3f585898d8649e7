package sqlgen

import (
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/quickcommerce/deals-engine/pkg/models"
	"github.com/quickcommerce/deals-engine/pkg/schema"
)

// intentVocabulary holds tokens that express what kind of answer the user
// wants rather than what thing they are asking about. Tokens outside this
// set are treated as the subject of the question and become filter terms.
var intentVocabulary = map[string]struct{}{
	"cheapest": {}, "cheap": {}, "cheaper": {}, "lowest": {}, "minimum": {},
	"expensive": {}, "costliest": {}, "priciest": {}, "highest": {}, "maximum": {},
	"discount": {}, "discounts": {}, "discounted": {}, "offer": {}, "offers": {},
	"deal": {}, "deals": {}, "sale": {}, "sales": {}, "promo": {}, "promotion": {}, "promotions": {},
	"compare": {}, "comparison": {}, "versus": {}, "vs": {},
	"available": {}, "availability": {}, "stock": {}, "instock": {},
	"price": {}, "prices": {}, "pricing": {}, "cost": {}, "costs": {}, "rate": {}, "rates": {},
	"app": {}, "apps": {}, "platform": {}, "platforms": {},
	"best": {}, "top": {}, "item": {}, "items": {}, "product": {}, "products": {},
	"buy": {}, "order": {}, "delivery": {}, "today": {}, "now": {}, "near": {},
	"show": {}, "list": {}, "find": {}, "many": {}, "much": {},
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func anyToken(set map[string]struct{}, words ...string) bool {
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// subjectFilter is a resolved WHERE condition on the table whose keywords
// matched the question's subject term.
type subjectFilter struct {
	table *models.TableDescriptor
	col   string
	term  string
}

func (f *subjectFilter) condition() string {
	return fmt.Sprintf("%s.%s ILIKE '%s%%'", f.table.Name, f.col, f.term)
}

// Fallback builds a deterministic SQL candidate from the intent alone.
// Patterns are tried in fixed order (cheapest, most expensive, discounts,
// comparison, availability) and each degrades to the next when the
// candidate tables lack the columns it needs, ending at a bounded listing
// of the top-ranked table. Fallback therefore always produces a statement
// for a non-empty candidate set.
func Fallback(intent *models.QueryIntent, index *schema.Index, maxRows int) (*models.SQLCandidate, error) {
	if len(intent.CandidateTables) == 0 {
		return nil, fmt.Errorf("fallback requires at least one candidate table")
	}

	tables := make([]*models.TableDescriptor, 0, len(intent.CandidateTables))
	for _, c := range intent.CandidateTables {
		t, err := index.Get(c.Name)
		if err != nil {
			return nil, fmt.Errorf("resolve candidate table: %w", err)
		}
		tables = append(tables, t)
	}

	set := tokenSet(intent.Tokens)
	filter := resolveSubjectFilter(intent.Tokens, tables)

	var statement string
	switch {
	case anyToken(set, "cheapest", "cheap", "cheaper", "lowest", "minimum"):
		statement = orderedByMeasure(tables, filter, "ASC", 1, "price", "cost", "rate")
	case anyToken(set, "expensive", "costliest", "priciest", "highest", "maximum"):
		statement = orderedByMeasure(tables, filter, "DESC", 1, "price", "cost", "rate")
	case anyToken(set, "discount", "discounts", "discounted", "offer", "offers", "deal", "deals", "sale", "sales", "promo", "promotion", "promotions"):
		statement = conditionListing(tables, filter, maxRows, "discount", "%s.%s > 0", true)
	case anyToken(set, "compare", "comparison", "versus", "vs"):
		statement = orderedByMeasure(tables, filter, "ASC", maxRows, "price", "cost", "rate")
	case anyToken(set, "available", "availability", "stock", "instock"):
		statement = flagListing(tables, filter, maxRows)
	}
	if statement == "" {
		statement = listing(tables[0], filter, maxRows)
	}

	bound := boundTablesOf(statement, tables)
	return &models.SQLCandidate{
		Statement:   statement,
		BoundTables: bound,
		Source:      models.SourceTemplateFallback,
	}, nil
}

// resolveSubjectFilter finds the question's subject term (the first token
// outside the intent vocabulary) and the candidate table whose keywords
// matched it. No match, or an unsafe term, means no filter.
func resolveSubjectFilter(tokens []string, tables []*models.TableDescriptor) *subjectFilter {
	for _, tok := range tokens {
		if _, ok := intentVocabulary[tok]; ok {
			continue
		}
		term := strings.TrimSuffix(tok, "s")
		if len(term) < 3 {
			continue
		}
		// Tokenization strips punctuation, so a quote here means the token
		// did not come from the planner. Refuse rather than escape.
		if strings.ContainsAny(term, `'"\`) {
			return nil
		}
		if isSQLi, _ := libinjection.IsSQLi(term); isSQLi {
			return nil
		}

		for _, t := range tables {
			if !keywordMatches(t.SemanticKeywords, tok, term) {
				continue
			}
			if col := nameColumn(t); col != "" {
				return &subjectFilter{table: t, col: col, term: term}
			}
		}
	}
	return nil
}

func keywordMatches(keywords []string, tok, term string) bool {
	for _, kw := range keywords {
		if kw == tok || kw == term {
			return true
		}
		if len(kw) >= 4 && (strings.Contains(tok, kw) || strings.Contains(kw, tok)) {
			return true
		}
	}
	return false
}

// nameColumn picks the column a subject filter should apply to: a text
// category column containing "name", then any text category column, then
// any text column.
func nameColumn(t *models.TableDescriptor) string {
	for _, c := range t.Columns {
		if c.DeclaredType == models.ColumnTypeText && c.SemanticRole == models.RoleCategory && strings.Contains(c.Name, "name") {
			return c.Name
		}
	}
	for _, c := range t.Columns {
		if c.DeclaredType == models.ColumnTypeText && c.SemanticRole == models.RoleCategory {
			return c.Name
		}
	}
	for _, c := range t.Columns {
		if c.DeclaredType == models.ColumnTypeText {
			return c.Name
		}
	}
	return ""
}

// findColumn locates the first column in candidate rank order with the
// given semantic role whose name contains one of the substrings.
func findColumn(tables []*models.TableDescriptor, role string, substrs ...string) (*models.TableDescriptor, string) {
	for _, sub := range substrs {
		for _, t := range tables {
			for _, c := range t.Columns {
				if c.SemanticRole == role && strings.Contains(c.Name, sub) {
					return t, c.Name
				}
			}
		}
	}
	return nil, ""
}

// joinClause returns the ON condition joining a and b, if the catalog
// declares a relationship in either direction.
func joinClause(a, b *models.TableDescriptor) (string, bool) {
	for _, rel := range a.Relationships {
		if rel.ForeignTable == b.Name {
			return fmt.Sprintf("%s.%s = %s.%s", a.Name, rel.LocalColumn, b.Name, rel.ForeignColumn), true
		}
	}
	for _, rel := range b.Relationships {
		if rel.ForeignTable == a.Name {
			return fmt.Sprintf("%s.%s = %s.%s", b.Name, rel.LocalColumn, a.Name, rel.ForeignColumn), true
		}
	}
	return "", false
}

// fromClause builds "FROM base [JOIN filter.table ON ...]" plus the WHERE
// conditions. The filter is joined in when it lives on another table and a
// declared relationship connects the two; otherwise it is dropped rather
// than producing an unjoinable statement.
func fromClause(base *models.TableDescriptor, filter *subjectFilter, extraConds ...string) (from string, conds []string) {
	from = "FROM " + base.Name
	conds = append(conds, extraConds...)

	if filter == nil {
		return from, conds
	}
	if filter.table.Name == base.Name {
		return from, append(conds, filter.condition())
	}
	if on, ok := joinClause(base, filter.table); ok {
		from += fmt.Sprintf(" JOIN %s ON %s", filter.table.Name, on)
		return from, append(conds, filter.condition())
	}
	return from, conds
}

func assemble(selectList, from string, conds []string, tail string) string {
	var b strings.Builder
	b.WriteString("SELECT " + selectList + " " + from)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if tail != "" {
		b.WriteString(" " + tail)
	}
	return b.String()
}

// orderedByMeasure lists rows ordered by the best matching measure column,
// joined to the subject's table when the filter lives elsewhere. Empty
// when no candidate carries such a measure.
func orderedByMeasure(tables []*models.TableDescriptor, filter *subjectFilter, direction string, limit int, substrs ...string) string {
	measureTable, measureCol := findColumn(tables, models.RoleMeasure, substrs...)
	if measureTable == nil {
		return ""
	}

	selectList := measureTable.Name + ".*"
	if filter != nil && filter.table.Name != measureTable.Name {
		selectList += fmt.Sprintf(", %s.%s", filter.table.Name, filter.col)
	}

	from, conds := fromClause(measureTable, filter)
	tail := fmt.Sprintf("ORDER BY %s.%s %s LIMIT %d", measureTable.Name, measureCol, direction, limit)
	return assemble(selectList, from, conds, tail)
}

// conditionListing lists rows where a measure column meets a condition,
// ordered by that column descending when orderDesc is set.
func conditionListing(tables []*models.TableDescriptor, filter *subjectFilter, maxRows int, colSub, condFormat string, orderDesc bool) string {
	table, col := findColumn(tables, models.RoleMeasure, colSub)
	if table == nil {
		return ""
	}

	from, conds := fromClause(table, filter, fmt.Sprintf(condFormat, table.Name, col))
	tail := fmt.Sprintf("LIMIT %d", maxRows)
	if orderDesc {
		tail = fmt.Sprintf("ORDER BY %s.%s DESC LIMIT %d", table.Name, col, maxRows)
	}
	return assemble(table.Name+".*", from, conds, tail)
}

// flagListing lists rows whose availability flag is set.
func flagListing(tables []*models.TableDescriptor, filter *subjectFilter, maxRows int) string {
	table, col := findColumn(tables, models.RoleFlag, "avail", "stock")
	if table == nil {
		return ""
	}

	from, conds := fromClause(table, filter, fmt.Sprintf("%s.%s = TRUE", table.Name, col))
	return assemble(table.Name+".*", from, conds, fmt.Sprintf("LIMIT %d", maxRows))
}

// listing is the terminal pattern: a bounded scan of the top-ranked table.
func listing(primary *models.TableDescriptor, filter *subjectFilter, maxRows int) string {
	from, conds := fromClause(primary, filter)
	return assemble(primary.Name+".*", from, conds, fmt.Sprintf("LIMIT %d", maxRows))
}

// boundTablesOf reports which candidate tables the statement references.
func boundTablesOf(statement string, tables []*models.TableDescriptor) []string {
	masked := maskLiterals(statement)
	var bound []string
	for _, name := range referencedTables(masked) {
		for _, t := range tables {
			if t.Name == name {
				bound = append(bound, name)
				break
			}
		}
	}
	return bound
}
