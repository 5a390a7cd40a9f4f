package repositories

import (
	"sort"
	"strings"
	"unicode"

	"github.com/upb/concept-studio/models"
)

// Ranker orders candidate records by relevance to a query and keeps at most n
type Ranker func(records []*models.GenerationRecord, query string, n int) []*models.SearchResult

// Terms splits a query into lower-cased, de-duplicated search terms
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// Rank scores each record by how many query terms appear in its document.
// Records matching no term are dropped; ties keep the newest record first.
func Rank(records []*models.GenerationRecord, query string, n int) []*models.SearchResult {
	if n <= 0 {
		n = DefaultSearchResults
	}
	terms := Terms(query)
	if len(terms) == 0 {
		return []*models.SearchResult{}
	}

	results := make([]*models.SearchResult, 0, len(records))
	for _, rec := range records {
		doc := strings.ToLower(rec.Document())
		score := 0
		for _, term := range terms {
			if strings.Contains(doc, term) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		results = append(results, &models.SearchResult{
			Record:   rec,
			Score:    score,
			Distance: 1 / float64(1+score),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Record.CreatedAt.After(results[j].Record.CreatedAt)
	})

	if len(results) > n {
		results = results[:n]
	}
	return results
}
