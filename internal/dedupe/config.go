// Package dedupe implements the advisory duplicate search that runs
// before a record advances toward registration. Matching rules are
// configuration, not code: each event type carries a list of rules, and
// each rule a list of field-matching clauses queried against the index.
package dedupe

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"registrar/internal/search"
	id "registrar/pkg/domain"
)

// RuleClause is one field comparison template. The concrete query value
// is taken from the prospective record state at evaluation time.
type RuleClause struct {
	Field      string           `json:"field"`
	Kind       search.MatchKind `json:"kind"`
	Boost      float64          `json:"boost"`
	WithinDays int              `json:"withinDays,omitempty"`
}

// Rule is one named matching strategy for an event type.
type Rule struct {
	Name    string       `json:"name"`
	Event   id.EventType `json:"event"`
	Clauses []RuleClause `json:"clauses"`
}

// RuleLoader fetches the full rule set from wherever configuration
// lives (country-config service, file, database).
type RuleLoader func(ctx context.Context) ([]Rule, error)

// ConfigStore caches matching rules per event type. It is explicitly
// constructed and injected; Refresh drops the cache so the next lookup
// reloads. Rules also expire on their own after the TTL.
type ConfigStore struct {
	loader RuleLoader
	cache  *gocache.Cache
}

const rulesKeyPrefix = "dedupe-rules:"

// NewConfigStore builds a rule cache over the given loader.
func NewConfigStore(loader RuleLoader, ttl time.Duration) *ConfigStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ConfigStore{
		loader: loader,
		cache:  gocache.New(ttl, ttl),
	}
}

// RulesFor returns the matching rules for one event type, loading and
// caching the full set on a miss.
func (c *ConfigStore) RulesFor(ctx context.Context, event id.EventType) ([]Rule, error) {
	if cached, ok := c.cache.Get(rulesKeyPrefix + string(event)); ok {
		return cached.([]Rule), nil
	}
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	if cached, ok := c.cache.Get(rulesKeyPrefix + string(event)); ok {
		return cached.([]Rule), nil
	}
	return nil, nil
}

// Refresh invalidates the cache and reloads immediately.
func (c *ConfigStore) Refresh(ctx context.Context) error {
	c.cache.Flush()
	return c.load(ctx)
}

func (c *ConfigStore) load(ctx context.Context) error {
	rules, err := c.loader(ctx)
	if err != nil {
		return fmt.Errorf("load dedupe rules: %w", err)
	}
	byEvent := make(map[id.EventType][]Rule)
	for _, rule := range rules {
		byEvent[rule.Event] = append(byEvent[rule.Event], rule)
	}
	for event, eventRules := range byEvent {
		c.cache.SetDefault(rulesKeyPrefix+string(event), eventRules)
	}
	// Cache empty sets too so missing config doesn't reload every call.
	for _, event := range id.EventTypes() {
		if _, ok := byEvent[event]; !ok {
			c.cache.SetDefault(rulesKeyPrefix+string(event), []Rule(nil))
		}
	}
	return nil
}

// DefaultRules is the built-in rule set used when no external
// configuration is wired. Field names follow the declaration schema the
// registration forms produce.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  "birth-same-child",
			Event: id.EventBirth,
			Clauses: []RuleClause{
				{Field: "child.firstName", Kind: search.MatchFuzzy, Boost: 2},
				{Field: "child.familyName", Kind: search.MatchFuzzy, Boost: 2},
				{Field: "child.dob", Kind: search.MatchDateRange, Boost: 3, WithinDays: 30},
			},
		},
		{
			Name:  "birth-same-mother",
			Event: id.EventBirth,
			Clauses: []RuleClause{
				{Field: "mother.nationalId", Kind: search.MatchExact, Boost: 4},
				{Field: "child.dob", Kind: search.MatchDateRange, Boost: 2, WithinDays: 270},
			},
		},
		{
			Name:  "death-same-deceased",
			Event: id.EventDeath,
			Clauses: []RuleClause{
				{Field: "deceased.nationalId", Kind: search.MatchExact, Boost: 4},
				{Field: "deceased.familyName", Kind: search.MatchFuzzy, Boost: 2},
				{Field: "deceased.dod", Kind: search.MatchDateRange, Boost: 3, WithinDays: 7},
			},
		},
		{
			Name:  "marriage-same-couple",
			Event: id.EventMarriage,
			Clauses: []RuleClause{
				{Field: "bride.nationalId", Kind: search.MatchExact, Boost: 3},
				{Field: "groom.nationalId", Kind: search.MatchExact, Boost: 3},
				{Field: "marriage.date", Kind: search.MatchDateRange, Boost: 2, WithinDays: 30},
			},
		},
	}
}

// StaticRules adapts a fixed rule list into a RuleLoader.
func StaticRules(rules []Rule) RuleLoader {
	return func(context.Context) ([]Rule, error) { return rules, nil }
}
