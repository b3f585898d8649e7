package planner

import "strings"

// stopwords are dropped during question normalization. Question words and
// glue words carry no table-selection signal.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "get": {},
	"give": {}, "has": {}, "have": {}, "how": {}, "i": {}, "in": {},
	"is": {}, "it": {}, "me": {}, "my": {}, "now": {}, "of": {}, "on": {},
	"or": {}, "right": {}, "show": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "there": {}, "this": {}, "to": {}, "want": {}, "what": {},
	"where": {}, "which": {}, "who": {}, "will": {}, "with": {}, "you": {},
}

// Tokenize lowercases the question, strips punctuation, and drops
// stopwords. Token order follows the question.
func Tokenize(question string) []string {
	lower := strings.ToLower(question)

	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '%' && r != '₹'
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
