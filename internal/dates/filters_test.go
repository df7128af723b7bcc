package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConvertFiltersRewritesDateFields(t *testing.T) {
	now := time.Date(2025, time.October, 31, 12, 0, 0, 0, time.UTC)
	in := map[string]any{
		"created": "last 7 days",
		"updated": "older than 30 days",
		"stageId": 5,
	}

	out := ConvertFilters(in, now)

	assert.Equal(t, ">2025-10-24", out["created"])
	assert.Equal(t, "<2025-10-01", out["updated"])
	assert.Equal(t, 5, out["stageId"], "non-date filters pass through untouched")
	assert.Equal(t, "last 7 days", in["created"], "input map is not mutated")
}

func TestConvertFiltersConvenienceKeys(t *testing.T) {
	now := time.Date(2025, time.October, 31, 12, 0, 0, 0, time.UTC)

	out := ConvertFilters(map[string]any{"createdInLast": "7 days"}, now)
	assert.Equal(t, ">2025-10-24", out["created"])
	assert.NotContains(t, out, "createdInLast")

	out = ConvertFilters(map[string]any{"updatedOlderThan": "1 month"}, now)
	assert.Equal(t, "<2025-09-30", out["updated"])
	assert.NotContains(t, out, "updatedOlderThan")
}

func TestConvertFiltersLeavesUnrecognizedAlone(t *testing.T) {
	now := time.Now()
	out := ConvertFilters(map[string]any{"created": "whenever"}, now)
	assert.Equal(t, "whenever", out["created"],
		"the remote gets to reject what the normalizer cannot parse")
}

func TestConvertFiltersEmpty(t *testing.T) {
	assert.Nil(t, ConvertFilters(nil, time.Now()))
}
