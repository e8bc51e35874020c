package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
)

// InMemoryClient is the index used in tests and single-node deployments.
// Scoring is intentionally simple; the production index applies the same
// clause semantics with its own analyzers.
type InMemoryClient struct {
	mu   sync.RWMutex
	docs map[id.RecordID]Document
}

func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{docs: make(map[id.RecordID]Document)}
}

func (c *InMemoryClient) Index(_ context.Context, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[doc.RecordID] = doc
	return nil
}

func (c *InMemoryClient) Search(_ context.Context, event id.EventType, clauses []Clause) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var hits []Hit
	for _, doc := range c.docs {
		if doc.Event != event {
			continue
		}
		score := scoreDocument(doc, clauses)
		if score > 0 {
			hits = append(hits, Hit{RecordID: doc.RecordID, Score: score})
		}
	}
	return hits, nil
}

func scoreDocument(doc Document, clauses []Clause) float64 {
	var score float64
	for _, clause := range clauses {
		value, ok := doc.Fields[clause.Field]
		if !ok {
			continue
		}
		switch clause.Kind {
		case MatchExact:
			if value.Equal(clause.Value) {
				score += clause.Boost
			}
		case MatchFuzzy:
			score += clause.Boost * fuzzyScore(value, clause.Value)
		case MatchDateRange:
			if withinDays(value, clause.Value, clause.WithinDays) {
				score += clause.Boost
			}
		}
	}
	return score
}

// fuzzyScore returns a similarity in [0,1]; below the threshold the
// clause contributes nothing so trivial overlaps don't inflate scores.
func fuzzyScore(a, b models.FieldValue) float64 {
	if a.Kind != models.KindString || b.Kind != models.KindString {
		if a.Equal(b) {
			return 1
		}
		return 0
	}
	left := strings.ToLower(strings.TrimSpace(a.Str))
	right := strings.ToLower(strings.TrimSpace(b.Str))
	if left == "" || right == "" {
		return 0
	}
	if left == right {
		return 1
	}
	distance := levenshtein(left, right)
	longest := max(len(left), len(right))
	similarity := 1 - float64(distance)/float64(longest)
	if similarity < 0.7 {
		return 0
	}
	return similarity
}

func withinDays(a, b models.FieldValue, days int) bool {
	if a.Kind != models.KindString || b.Kind != models.KindString {
		return false
	}
	left, errA := time.Parse("2006-01-02", a.Str)
	right, errB := time.Parse("2006-01-02", b.Str)
	if errA != nil || errB != nil {
		return false
	}
	diff := left.Sub(right)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(days)*24*time.Hour
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
