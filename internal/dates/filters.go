package dates

import "time"

// dateFields are the filter keys whose values may contain date expressions.
var dateFields = []string{
	"created", "updated",
	"createdAfter", "createdBefore",
	"updatedAfter", "updatedBefore",
}

// convenience keys rewritten onto the canonical date fields.
var convenienceFields = map[string]struct {
	target string
	prefix string
}{
	"createdInLast":    {"created", "last "},
	"updatedInLast":    {"updated", "last "},
	"createdOlderThan": {"created", "older than "},
	"updatedOlderThan": {"updated", "older than "},
}

// ConvertFilters rewrites any fuzzy date expressions in filters into absolute
// predicates. Unrecognized values are left untouched so the remote can reject
// them with a proper validation error. The input map is not modified.
func ConvertFilters(filters map[string]any, now time.Time) map[string]any {
	if len(filters) == 0 {
		return filters
	}
	converted := make(map[string]any, len(filters))
	for k, v := range filters {
		converted[k] = v
	}

	for _, field := range dateFields {
		raw, ok := converted[field].(string)
		if !ok {
			continue
		}
		if p, err := Normalize(raw, now); err == nil {
			converted[field] = p.String()
		}
	}

	for key, rule := range convenienceFields {
		raw, ok := converted[key].(string)
		if !ok {
			continue
		}
		if p, err := Normalize(rule.prefix+raw, now); err == nil {
			converted[rule.target] = p.String()
			delete(converted, key)
		}
	}
	return converted
}
