package cache

import "time"

// TTLPolicy maps record categories to cache lifetimes. Lookup data that
// rarely changes keeps long TTLs; frequently-appended activity data keeps
// short ones. The exact values are policy, not contract, and may be replaced
// wholesale by callers.
type TTLPolicy struct {
	ByCategory map[string]time.Duration
	Default    time.Duration
}

// DefaultTTLPolicy returns the tiering used against the production API.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		ByCategory: map[string]time.Duration{
			// Schema and dictionary data changes rarely.
			"customFields": 5 * time.Minute,
			"pipelines":    5 * time.Minute,
			"stages":       5 * time.Minute,
			"users":        5 * time.Minute,

			// Primary records change occasionally.
			"people": 60 * time.Second,
			"deals":  60 * time.Second,
			"tasks":  60 * time.Second,

			// Activity logs are appended constantly.
			"calls":        30 * time.Second,
			"events":       30 * time.Second,
			"notes":        30 * time.Second,
			"appointments": 30 * time.Second,
		},
		Default: 60 * time.Second,
	}
}

// TTL returns the lifetime for a category, falling back to the default.
func (p TTLPolicy) TTL(category string) time.Duration {
	if ttl, ok := p.ByCategory[category]; ok {
		return ttl
	}
	return p.Default
}
