package discovery

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jdelaney/crm-mcp/internal/cache"
	"github.com/jdelaney/crm-mcp/internal/logger"
)

// quickRefTTL keeps the reference fresh without rebuilding it per call.
const quickRefTTL = 60 * time.Second

// QuickRef is a coarse, precomputed map of the tenant's data. It is an aid
// for orientation, not a replacement for Find.
type QuickRef struct {
	Overview     string              `json:"overview"`
	Buckets      map[string][]string `json:"buckets"`
	Stages       []Entity            `json:"stages,omitempty"`
	CustomFields FieldsSummary       `json:"customFields"`
}

// FieldsSummary is a short census of tenant-defined fields.
type FieldsSummary struct {
	Count    int      `json:"count"`
	Examples []Entity `json:"examples,omitempty"`
}

// buckets maps coarse domain groupings to the name fragments that place a
// category inside them.
var buckets = map[string][]string{
	"people-like":   {"people", "contact", "lead"},
	"activity-like": {"call", "event", "note", "appointment", "task"},
	"deal-like":     {"deal", "pipeline"},
	"lookup-like":   {"stage", "user", "field", "source"},
}

// QuickReference builds the reference on demand, cached for a short TTL.
func (ix *Index) QuickReference(ctx context.Context) (*QuickRef, error) {
	key := cache.Key("discovery", map[string]any{"kind": "quickref"}, 0)
	if ix.store != nil {
		if raw, ok := ix.store.Get(key); ok {
			var cached QuickRef
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	ref := &QuickRef{
		Overview: "Common data locations. Use find_data_location for a scored search.",
		Buckets:  map[string][]string{},
	}
	for _, c := range categories {
		for bucket, fragments := range buckets {
			if matchesBucket(c.name, fragments) {
				ref.Buckets[bucket] = append(ref.Buckets[bucket], c.name)
			}
		}
	}

	if stages, err := ix.listNamed(ctx, "stages", "/stages"); err == nil {
		for i, s := range stages {
			if i == 10 {
				break
			}
			ref.Stages = append(ref.Stages, Entity{
				Type:      TypeStage,
				Name:      s.name,
				ID:        s.id,
				UsageHint: "stageId=" + s.id,
			})
		}
	} else {
		logger.Warnf("quick reference: stages unavailable: %v", err)
	}

	if resp, err := ix.cachedGet(ctx, "customFields", "/customFields", nil); err == nil {
		fields := listSection(resp, "customFields")
		ref.CustomFields.Count = len(fields)
		for i, field := range fields {
			if i == 5 {
				break
			}
			name, _ := field["name"].(string)
			label, _ := field["label"].(string)
			fieldType, _ := field["type"].(string)
			ref.CustomFields.Examples = append(ref.CustomFields.Examples, Entity{
				Type:        TypeField,
				Name:        name,
				ID:          asID(field["id"]),
				Description: label + " (" + fieldType + ")",
			})
		}
	} else {
		logger.Warnf("quick reference: custom fields unavailable: %v", err)
	}

	if ix.store != nil {
		if raw, err := json.Marshal(ref); err == nil {
			if putErr := ix.store.Put(key, raw, quickRefTTL); putErr != nil {
				logger.Debugf("quick reference: not cached: %v", putErr)
			}
		}
	}
	return ref, nil
}

func matchesBucket(name string, fragments []string) bool {
	for _, fragment := range fragments {
		if strings.Contains(name, fragment) {
			return true
		}
	}
	return false
}
