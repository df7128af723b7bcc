// Package query offers a fixed, enumerated set of aggregation primitives
// over fetched record batches. Requests are plain data; there is no
// expression language and nothing is ever evaluated.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// undefinedGroup collects records missing the group key.
const undefinedGroup = "undefined"

// AggregateOp enumerates the supported aggregations.
type AggregateOp string

// Supported operations.
const (
	OpSum   AggregateOp = "sum"
	OpAvg   AggregateOp = "avg"
	OpCount AggregateOp = "count"
	OpMin   AggregateOp = "min"
	OpMax   AggregateOp = "max"
)

// ErrUnknownOp reports an unsupported aggregation operation.
type ErrUnknownOp struct {
	Op AggregateOp
}

func (e *ErrUnknownOp) Error() string {
	return fmt.Sprintf("query: unknown aggregation op %q", e.Op)
}

// GroupBy partitions records by the string value of key. Records without the
// key land under "undefined".
func GroupBy(records []map[string]any, key string) map[string][]map[string]any {
	groups := make(map[string][]map[string]any)
	for _, rec := range records {
		groups[groupKey(rec, key)] = append(groups[groupKey(rec, key)], rec)
	}
	return groups
}

// CountBy counts records per value of key.
func CountBy(records []map[string]any, key string) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[groupKey(rec, key)]++
	}
	return counts
}

// SumBy totals the numeric values of key across records. Non-numeric values
// are skipped.
func SumBy(records []map[string]any, key string) float64 {
	total := 0.0
	for _, rec := range records {
		if v, ok := toFloat(rec[key]); ok {
			total += v
		}
	}
	return total
}

// Distinct returns the unique values of key, in first-seen order. With an
// empty key it deduplicates whole records by their string form.
func Distinct(records []map[string]any, key string) []any {
	seen := make(map[string]struct{})
	var out []any
	for _, rec := range records {
		var value any = rec
		if key != "" {
			value = rec[key]
		}
		repr := fmt.Sprint(value)
		if _, dup := seen[repr]; dup {
			continue
		}
		seen[repr] = struct{}{}
		out = append(out, value)
	}
	return out
}

// Aggregate groups records by groupKey and reduces aggregateKey within each
// group using op.
func Aggregate(records []map[string]any, groupByKey, aggregateKey string, op AggregateOp) (map[string]float64, error) {
	switch op {
	case OpSum, OpAvg, OpCount, OpMin, OpMax:
	default:
		return nil, &ErrUnknownOp{Op: op}
	}

	result := make(map[string]float64)
	for group, items := range GroupBy(records, groupByKey) {
		switch op {
		case OpCount:
			result[group] = float64(len(items))
		case OpSum:
			result[group] = SumBy(items, aggregateKey)
		case OpAvg:
			if len(items) > 0 {
				result[group] = SumBy(items, aggregateKey) / float64(len(items))
			}
		case OpMin, OpMax:
			values := numericValues(items, aggregateKey)
			if len(values) == 0 {
				result[group] = 0
				continue
			}
			sort.Float64s(values)
			if op == OpMin {
				result[group] = values[0]
			} else {
				result[group] = values[len(values)-1]
			}
		}
	}
	return result, nil
}

// FilterByDateRange keeps records whose dateField falls within [start, end].
// Records with missing or unparseable dates are dropped.
func FilterByDateRange(records []map[string]any, dateField string, start, end time.Time) []map[string]any {
	var out []map[string]any
	for _, rec := range records {
		raw, ok := rec[dateField].(string)
		if !ok {
			continue
		}
		t, err := parseTimestamp(raw)
		if err != nil {
			continue
		}
		if !t.Before(start) && !t.After(end) {
			out = append(out, rec)
		}
	}
	return out
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func groupKey(rec map[string]any, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return undefinedGroup
	}
	return fmt.Sprint(v)
}

func numericValues(records []map[string]any, key string) []float64 {
	var out []float64
	for _, rec := range records {
		if v, ok := toFloat(rec[key]); ok {
			out = append(out, v)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
