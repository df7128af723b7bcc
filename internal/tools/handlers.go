// Package tools wires the resilient query core to the MCP tool surface. The
// handlers are thin passthroughs; all policy lives in the core packages.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jdelaney/crm-mcp/internal/cache"
	"github.com/jdelaney/crm-mcp/internal/crm"
	"github.com/jdelaney/crm-mcp/internal/dates"
	"github.com/jdelaney/crm-mcp/internal/dedupe"
	"github.com/jdelaney/crm-mcp/internal/discovery"
	"github.com/jdelaney/crm-mcp/internal/query"
)

// Handler is the mcp-go tool handler signature.
type Handler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Deps bundles the shared core components handed to every handler. Tests
// construct isolated instances; nothing here is process-global.
type Deps struct {
	Client  *crm.Client
	Fetcher *crm.Fetcher
	Index   *discovery.Index
	Store   *cache.Store // nil when caching is disabled
}

// categoryPaths maps mutable categories to their REST paths.
var categoryPaths = map[string]string{
	"people":       "/people",
	"customFields": "/customFields",
}

// QueryRecords handles the query_records tool: an auto-paginated, cached,
// rate-governed fetch of up to maxRecords records. Fuzzy date filters are
// normalized before fetching. A partial failure still returns the pages that
// succeeded, tagged as partial.
func QueryRecords(d Deps) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		category, err := req.RequireString("category")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		args := req.GetArguments()
		filters, _ := args["filters"].(map[string]any)
		maxRecords := intArg(args, "maxRecords", 100)

		filters = dates.ConvertFilters(filters, time.Now())
		records, err := d.Fetcher.FetchUpTo(ctx, category, filters, maxRecords)
		if err != nil {
			var fe *crm.FetchError
			if errors.As(err, &fe) {
				return jsonResult(map[string]any{
					"partial":     true,
					"error":       fe.Error(),
					"failedPage":  fe.Page,
					"recordCount": len(fe.Partial),
					"records":     fe.Partial,
				})
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"partial":     false,
			"recordCount": len(records),
			"records":     records,
		})
	}
}

// AggregateRecords fetches records and reduces them with one of the
// enumerated aggregation primitives. Aggregations are data, not code.
func AggregateRecords(d Deps) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		category, err := req.RequireString("category")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		op, err := req.RequireString("op")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		args := req.GetArguments()
		filters, _ := args["filters"].(map[string]any)
		maxRecords := intArg(args, "maxRecords", 1000)
		groupBy, _ := args["groupBy"].(string)
		field, _ := args["field"].(string)

		filters = dates.ConvertFilters(filters, time.Now())
		records, err := d.Fetcher.FetchUpTo(ctx, category, filters, maxRecords)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if op == "distinct" {
			return jsonResult(map[string]any{
				"op":     op,
				"field":  field,
				"values": query.Distinct(records, field),
			})
		}
		if groupBy == "" {
			return mcp.NewToolResultError("groupBy is required for grouped aggregations"), nil
		}
		result, err := query.Aggregate(records, groupBy, field, query.AggregateOp(op))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"op":      op,
			"groupBy": groupBy,
			"field":   field,
			"groups":  result,
		})
	}
}

// FindDataLocation handles keyword search over the discovery catalog.
func FindDataLocation(d Deps) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		keywords := stringsArg(args, "keywords")
		if len(keywords) == 0 {
			return mcp.NewToolResultError("keywords is required"), nil
		}
		entityType, _ := args["type"].(string)
		limit := intArg(args, "limit", discovery.DefaultLimit)

		results, err := d.Index.Find(ctx, keywords, entityType, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"matches": results})
	}
}

// QuickReference returns the coarse catalog summary.
func QuickReference(d Deps) Handler {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref, err := d.Index.QuickReference(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(ref)
	}
}

// CheckDuplicates probes for contacts colliding with the given identity
// under the remote's dedup rules.
func CheckDuplicates(d Deps) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		candidate := dedupe.Candidate{
			Email:     stringArg(args, "email"),
			Phone:     stringArg(args, "phone"),
			FirstName: stringArg(args, "firstName"),
			LastName:  stringArg(args, "lastName"),
		}
		if candidate.Email == "" && candidate.Phone == "" {
			return mcp.NewToolResultError("at least one of email or phone is required"), nil
		}

		filters := map[string]any{}
		if candidate.Email != "" {
			filters["search"] = candidate.Email
		} else {
			filters["search"] = candidate.Phone
		}
		contacts, err := d.Fetcher.FetchUpTo(ctx, "people", filters, 100)
		if err != nil {
			var fe *crm.FetchError
			if !errors.As(err, &fe) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			// A partial candidate set still allows a useful check.
			contacts = fe.Partial
		}
		return jsonResult(dedupe.FindDuplicates(contacts, candidate))
	}
}

// CreateRecord handles create_person / create_custom_field style writes and
// drops every cached page of the affected category afterwards.
func CreateRecord(d Deps, category string) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		data, _ := args["data"].(map[string]any)
		if len(data) == 0 {
			return mcp.NewToolResultError("data is required"), nil
		}
		result, err := d.Client.Post(ctx, categoryPaths[category], data)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		d.invalidate(category)
		return jsonResult(result)
	}
}

// UpdateRecord handles updates by record ID, invalidating the category.
func UpdateRecord(d Deps, category string) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		args := req.GetArguments()
		data, _ := args["data"].(map[string]any)
		if len(data) == 0 {
			return mcp.NewToolResultError("data is required"), nil
		}
		result, err := d.Client.Put(ctx, categoryPaths[category]+"/"+id, data)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		d.invalidate(category)
		return jsonResult(result)
	}
}

// DeleteRecord handles deletes by record ID, invalidating the category.
func DeleteRecord(d Deps, category string) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := d.Client.Delete(ctx, categoryPaths[category]+"/"+id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		d.invalidate(category)
		return jsonResult(map[string]any{"deleted": id, "response": result})
	}
}

// CacheStats reports cache effectiveness counters.
func CacheStats(d Deps) Handler {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if d.Store == nil {
			return jsonResult(map[string]any{"enabled": false})
		}
		snap := d.Store.Stats()
		return jsonResult(map[string]any{"enabled": true, "stats": snap})
	}
}

// invalidate drops cached pages for a category. Custom field changes also
// reshape the discovered schema, so the discovery snapshots go with them.
func (d Deps) invalidate(category string) {
	if d.Store == nil {
		return
	}
	d.Store.InvalidateCategory(category)
	if category == "customFields" {
		d.Store.InvalidateCategory("discovery")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// stringsArg accepts either a JSON array of strings or a single string.
func stringsArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
