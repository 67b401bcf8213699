package processors

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/recallio/recall-go/store"
)

// stopwords are skipped when ranking candidate keywords.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "i": {}, "in": {}, "is": {}, "it": {}, "my": {}, "of": {},
	"on": {}, "or": {}, "so": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "was": {}, "we": {}, "were": {}, "with": {},
}

// Keywords ranks the most frequent non-stopword terms in the content.
type Keywords struct {
	// Max caps how many keywords are emitted. Zero means 5.
	Max int
}

func (Keywords) Name() string { return "keywords" }

func (p Keywords) Process(_ context.Context, record *store.Memory) (map[string]any, error) {
	max := p.Max
	if max <= 0 {
		max = 5
	}

	counts := map[string]int{}
	words := strings.FieldsFunc(strings.ToLower(record.Content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		counts[w]++
	}
	if len(counts) == 0 {
		return nil, nil
	}

	type ranked struct {
		word  string
		count int
	}
	all := make([]ranked, 0, len(counts))
	for w, n := range counts {
		all = append(all, ranked{w, n})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].word < all[j].word
	})
	if len(all) > max {
		all = all[:max]
	}

	keywords := make([]string, len(all))
	for i, r := range all {
		keywords[i] = r.word
	}
	return map[string]any{"keywords": keywords}, nil
}
