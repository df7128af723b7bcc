package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// keySeparator joins the category prefix and the parameter digest. Keeping the
// category in clear text is what makes prefix invalidation possible.
const keySeparator = "|"

// Key builds a deterministic cache key from a category, a filter parameter
// set, and a page offset. Two logically identical requests produce the same
// key regardless of map insertion order.
func Key(category string, params map[string]any, offset int) string {
	canonical := canonicalize(params)
	sum := sha256.Sum256([]byte(canonical))
	// First 8 bytes of the digest is plenty for a single-process cache.
	return fmt.Sprintf("%s%s%s%s%d", category, keySeparator, hex.EncodeToString(sum[:8]), keySeparator, offset)
}

// canonicalize renders params as JSON with sorted keys. Nested maps and
// slices are canonicalized recursively.
func canonicalize(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ","
			}
			kb, _ := json.Marshal(k)
			out += string(kb) + ":" + canonicalize(val[k])
		}
		return out + "}"
	case []any:
		out := "["
		for i, item := range val {
			if i > 0 {
				out += ","
			}
			out += canonicalize(item)
		}
		return out + "]"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%q", fmt.Sprint(val))
		}
		return string(b)
	}
}
