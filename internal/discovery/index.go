package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/jdelaney/crm-mcp/internal/cache"
	"github.com/jdelaney/crm-mcp/internal/crm"
	"github.com/jdelaney/crm-mcp/internal/logger"
)

// DefaultLimit bounds result lists when the caller does not specify one.
const DefaultLimit = 10

// Index answers "where does data about X live" against the tenant's schema.
// Live lookups (stages, custom fields, sources) are cached under short TTLs
// and concurrent builds of the same lookup are collapsed.
type Index struct {
	client *crm.Client
	store  *cache.Store // nil when caching is disabled
	ttl    cache.TTLPolicy
	group  singleflight.Group
}

// NewIndex creates an Index backed by the shared cache store.
func NewIndex(client *crm.Client, store *cache.Store) *Index {
	return &Index{client: client, store: store, ttl: cache.DefaultTTLPolicy()}
}

// Find returns entities matching the keyword set, ranked by relevance.
// typeFilter narrows results to one entity type; empty or "any" searches all.
// Ties are broken by type precedence then name, so output is deterministic.
func (ix *Index) Find(ctx context.Context, keywords []string, typeFilter string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	wants := func(t EntityType) bool {
		return typeFilter == "" || typeFilter == "any" || typeFilter == string(t)
	}

	var results []Entity
	if wants(TypeCategory) {
		results = append(results, ix.scoreCategories(keywords)...)
	}
	if wants(TypeStage) {
		results = append(results, ix.scoreStages(ctx, keywords)...)
	}
	if wants(TypeField) {
		results = append(results, ix.scoreFields(ctx, keywords)...)
	}
	if wants(TypeSource) {
		results = append(results, ix.scoreSources(ctx, keywords)...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if pi, pj := typePrecedence[results[i].Type], typePrecedence[results[j].Type]; pi != pj {
			return pi < pj
		}
		return results[i].Name < results[j].Name
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (ix *Index) scoreCategories(keywords []string) []Entity {
	var out []Entity
	for _, c := range categories {
		text := c.name + " " + c.description + " " + strings.Join(c.keywords, " ")
		score := MatchScore(text, keywords)
		if score == 0 {
			continue
		}
		out = append(out, Entity{
			Type:        TypeCategory,
			Name:        c.name,
			Description: c.description,
			UsageHint:   fmt.Sprintf("query_records(category=%q), filters: %s", c.name, strings.Join(c.filters, ", ")),
			Score:       score,
		})
	}
	return out
}

func (ix *Index) scoreStages(ctx context.Context, keywords []string) []Entity {
	stages, err := ix.listNamed(ctx, "stages", "/stages")
	if err != nil {
		logger.Warnf("discovery: stages unavailable: %v", err)
		return nil
	}
	var out []Entity
	for _, s := range stages {
		score := MatchScore(s.name, keywords)
		if score == 0 {
			continue
		}
		out = append(out, Entity{
			Type:        TypeStage,
			Name:        s.name,
			ID:          s.id,
			Description: "Stage: " + s.name,
			UsageHint:   fmt.Sprintf("filter people or deals with stageId=%s", s.id),
			Score:       score,
		})
	}
	return out
}

func (ix *Index) scoreFields(ctx context.Context, keywords []string) []Entity {
	resp, err := ix.cachedGet(ctx, "customFields", "/customFields", nil)
	if err != nil {
		logger.Warnf("discovery: custom fields unavailable: %v", err)
		return nil
	}
	var out []Entity
	for _, field := range listSection(resp, "customFields") {
		name, _ := field["name"].(string)
		label, _ := field["label"].(string)
		fieldType, _ := field["type"].(string)
		score := MatchScore(name+" "+label, keywords)
		if score == 0 {
			continue
		}
		out = append(out, Entity{
			Type:        TypeField,
			Name:        name,
			ID:          asID(field["id"]),
			Description: fmt.Sprintf("Custom field: %s (%s)", label, fieldType),
			UsageHint:   fmt.Sprintf("set customFields[%q] when creating or updating people", name),
			Score:       score,
		})
	}
	return out
}

// scoreSources samples recent people to enumerate lead sources; the remote
// has no dedicated listing for them.
func (ix *Index) scoreSources(ctx context.Context, keywords []string) []Entity {
	resp, err := ix.cachedGet(ctx, "people", "/people", map[string]any{"limit": 100, "fields": "source,sourceId"})
	if err != nil {
		logger.Warnf("discovery: sources unavailable: %v", err)
		return nil
	}
	seen := map[string]string{}
	for _, person := range listSection(resp, "people") {
		name, _ := person["source"].(string)
		id := asID(person["sourceId"])
		if name != "" && id != "" {
			seen[id] = name
		}
	}
	var out []Entity
	for id, name := range seen {
		score := MatchScore(name, keywords)
		if score == 0 {
			continue
		}
		out = append(out, Entity{
			Type:        TypeSource,
			Name:        name,
			ID:          id,
			Description: "Lead source: " + name,
			UsageHint:   fmt.Sprintf("filter people with sourceId=%s", id),
			Score:       score,
		})
	}
	return out
}

type namedEntry struct {
	name string
	id   string
}

// listNamed fetches a lookup endpoint and extracts (name, id) pairs.
func (ix *Index) listNamed(ctx context.Context, category, path string) ([]namedEntry, error) {
	resp, err := ix.cachedGet(ctx, category, path, nil)
	if err != nil {
		return nil, err
	}
	var out []namedEntry
	for _, item := range listSection(resp, category) {
		name, _ := item["name"].(string)
		if name == "" {
			continue
		}
		out = append(out, namedEntry{name: name, id: asID(item["id"])})
	}
	return out, nil
}

// cachedGet fetches path through the shared cache under the category's TTL
// tier. Concurrent misses for the same key share one network call.
func (ix *Index) cachedGet(ctx context.Context, category, path string, params map[string]any) (map[string]any, error) {
	key := cache.Key(category, params, 0)
	if ix.store != nil {
		if raw, ok := ix.store.Get(key); ok {
			var cached map[string]any
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}
	v, err, _ := ix.group.Do(key, func() (any, error) {
		resp, err := ix.client.Get(ctx, path, params)
		if err != nil {
			return nil, err
		}
		if ix.store != nil {
			if raw, err := json.Marshal(resp); err == nil {
				if putErr := ix.store.Put(key, raw, ix.ttl.TTL(category)); putErr != nil {
					logger.Debugf("discovery: not caching %s: %v", category, putErr)
				}
			}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// listSection extracts the named list of objects from a response envelope.
func listSection(resp map[string]any, key string) []map[string]any {
	arr, ok := resp[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func asID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}
