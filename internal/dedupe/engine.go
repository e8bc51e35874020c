package dedupe

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"registrar/internal/record/models"
	"registrar/internal/search"
	dErrors "registrar/pkg/domain-errors"
)

// Engine ranks possible duplicates of a prospective record state. It is
// advisory: it never blocks or rejects the action, and results are
// attached to the action so later audits see what was known at decision
// time.
type Engine struct {
	index  search.Client
	config *ConfigStore
	logger *slog.Logger
}

func NewEngine(index search.Client, config *ConfigStore, logger *slog.Logger) *Engine {
	return &Engine{index: index, config: config, logger: logger}
}

// FindCandidates evaluates every configured rule for the state's event
// type against the index and returns candidates sorted by descending
// score, ties broken by ascending record id. Per-id the highest score
// wins; the record itself and previously confirmed non-duplicates are
// excluded.
func (e *Engine) FindCandidates(ctx context.Context, state models.EventState) ([]models.DuplicateCandidate, error) {
	rules, err := e.config.RulesFor(ctx, state.Event)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "deduplication rules unavailable")
	}
	if len(rules) == 0 {
		return nil, nil
	}

	var (
		mu   sync.Mutex
		hits []search.Hit
	)
	group, groupCtx := errgroup.WithContext(ctx)
	for _, rule := range rules {
		clauses := e.buildClauses(rule, state)
		if len(clauses) == 0 {
			// The prospective declaration carries none of the rule's
			// fields; nothing to query.
			continue
		}
		group.Go(func() error {
			ruleHits, err := e.index.Search(groupCtx, state.Event, clauses)
			if err != nil {
				return err
			}
			mu.Lock()
			hits = append(hits, ruleHits...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "deduplication query failed")
	}

	candidates := rank(hits, state)
	if len(candidates) > 0 {
		e.logger.InfoContext(ctx, "duplicate candidates found",
			"record_id", state.RecordID.String(),
			"candidates", len(candidates),
		)
	}
	return candidates, nil
}

// buildClauses instantiates a rule's clause templates with the values
// from the prospective declaration. Clauses whose field is absent are
// dropped rather than matched against a zero value.
func (e *Engine) buildClauses(rule Rule, state models.EventState) []search.Clause {
	clauses := make([]search.Clause, 0, len(rule.Clauses))
	for _, template := range rule.Clauses {
		value, ok := state.Declaration[template.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, search.Clause{
			Field:      template.Field,
			Kind:       template.Kind,
			Value:      value,
			Boost:      template.Boost,
			WithinDays: template.WithinDays,
		})
	}
	return clauses
}

// rank flattens rule results into the final candidate list: highest
// score per target id, sorted by score descending then id ascending,
// with the record itself and confirmed non-duplicates removed.
func rank(hits []search.Hit, state models.EventState) []models.DuplicateCandidate {
	best := make(map[string]models.DuplicateCandidate)
	for _, hit := range hits {
		if hit.RecordID == state.RecordID {
			continue
		}
		if state.NotDuplicates[hit.RecordID] {
			continue
		}
		key := hit.RecordID.String()
		if existing, ok := best[key]; !ok || hit.Score > existing.Score {
			best[key] = models.DuplicateCandidate{ID: hit.RecordID, Score: hit.Score}
		}
	}

	out := make([]models.DuplicateCandidate, 0, len(best))
	for _, candidate := range best {
		out = append(out, candidate)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})
	return out
}
