package main

import (
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jdelaney/crm-mcp/internal/cache"
	"github.com/jdelaney/crm-mcp/internal/config"
	"github.com/jdelaney/crm-mcp/internal/crm"
	"github.com/jdelaney/crm-mcp/internal/discovery"
	"github.com/jdelaney/crm-mcp/internal/logger"
	"github.com/jdelaney/crm-mcp/internal/metrics"
	tools "github.com/jdelaney/crm-mcp/internal/tools"
)

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting CRM MCP server")

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Errorf("configuration error: %v", err)
		os.Exit(1)
	}

	var store *cache.Store
	if cfg.CacheEnabled {
		opts := []cache.Option{}
		if cfg.MetricsAddr != "" {
			reg := prometheus.NewRegistry()
			opts = append(opts, cache.WithMetrics(reg, "crm_mcp"))
			defer metrics.Start(cfg.MetricsAddr, reg).Close()
		}
		store = cache.New(cfg.CacheMaxEntries, opts...)
		logger.Infof("Response cache enabled, max %d entries", cfg.CacheMaxEntries)
	} else {
		logger.Infof("Response cache disabled, all requests hit the network")
	}

	rateCfg := crm.DefaultRateConfig()
	rateCfg.BaseDelay = cfg.BaseDelay
	client := crm.NewClient(crm.ClientOptions{
		BaseURL:    cfg.APIBase,
		APIKey:     cfg.APIKey,
		SystemName: cfg.SystemName,
		Timeout:    cfg.RequestTimeout,
		Governor:   crm.NewGovernor(rateCfg),
	})
	fetcher := crm.NewFetcher(client, store, crm.FetcherOptions{PageSize: cfg.PageSize})
	index := discovery.NewIndex(client, store)
	deps := tools.Deps{Client: client, Fetcher: fetcher, Index: index, Store: store}
	logger.Infof("Initialized fetch, discovery, and cache layers")

	s := server.NewMCPServer(
		"CRM MCP",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)

	registerTools(s, deps)

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

func registerTools(s *server.MCPServer, deps tools.Deps) {
	s.AddTool(mcp.NewTool("query_records",
		mcp.WithDescription(multiline(
			"Fetches up to maxRecords records of a category, automatically paging through the remote API",
			"\nFunctionality:",
			"- Splits the request into page-sized fetches and merges the results",
			"- Serves repeated pages from a TTL cache without network calls",
			"- Paces requests against the remote's rate-limit quota",
			"- Stops early when the remote runs out of data",
			"\nUsage notes:",
			"- Date filters accept fuzzy expressions: 'last 7 days', 'older than 30 days', 'this month', 'today'",
			"- On a late-page failure the records fetched so far are returned, tagged partial",
		)),
		mcp.WithString("category", mcp.Required(), mcp.Description("Record category: people, deals, tasks, events, calls, notes, appointments, stages, users, customFields")),
		mcp.WithObject("filters", mcp.Description("Filter parameters passed to the remote, e.g. {\"stageId\": 5, \"created\": \"last 7 days\"}")),
		mcp.WithNumber("maxRecords", mcp.Description("Maximum records to return (default 100); may exceed the remote's page size")),
	), tools.QueryRecords(deps))

	s.AddTool(mcp.NewTool("aggregate_records",
		mcp.WithDescription(multiline(
			"Fetches records and reduces them with a fixed aggregation primitive",
			"\nFunctionality:",
			"- op is one of: sum, avg, count, min, max, distinct",
			"- Grouped ops require groupBy; numeric ops read values from field",
			"- distinct returns the unique values of field",
		)),
		mcp.WithString("category", mcp.Required(), mcp.Description("Record category to aggregate over")),
		mcp.WithString("op", mcp.Required(), mcp.Description("Aggregation operation: sum, avg, count, min, max, distinct")),
		mcp.WithString("groupBy", mcp.Description("Field to group records by (required for grouped ops)")),
		mcp.WithString("field", mcp.Description("Field holding the values to aggregate")),
		mcp.WithObject("filters", mcp.Description("Filter parameters, same as query_records")),
		mcp.WithNumber("maxRecords", mcp.Description("Maximum records to fetch before aggregating (default 1000)")),
	), tools.AggregateRecords(deps))

	s.AddTool(mcp.NewTool("find_data_location",
		mcp.WithDescription(multiline(
			"Searches the discovered schema catalog for where data about a topic lives",
			"\nFunctionality:",
			"- Matches keywords against categories, pipeline stages, tenant custom fields, and lead sources",
			"- Results are ranked by relevance; exact name matches rank highest",
			"\nUsage notes:",
			"- Use this before building filters when field or stage names are unknown",
		)),
		mcp.WithArray("keywords", mcp.Required(), mcp.Description("Keywords to search for, e.g. [\"lead\", \"budget\"]")),
		mcp.WithString("type", mcp.Description("Restrict to one entity type: category, stage, field, source")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
	), tools.FindDataLocation(deps))

	s.AddTool(mcp.NewTool("get_quick_reference",
		mcp.WithDescription("Returns a coarse overview of the tenant's data: category buckets, top stages, and a custom-field census"),
	), tools.QuickReference(deps))

	s.AddTool(mcp.NewTool("check_duplicates",
		mcp.WithDescription(multiline(
			"Checks whether a contact already exists under the CRM's dedup rules",
			"\nRules:",
			"- Same email address: duplicate (high confidence)",
			"- Same phone number plus matching first and last name: duplicate (medium confidence)",
		)),
		mcp.WithString("email", mcp.Description("Email address to check")),
		mcp.WithString("phone", mcp.Description("Phone number to check")),
		mcp.WithString("firstName", mcp.Description("First name, used with phone matching")),
		mcp.WithString("lastName", mcp.Description("Last name, used with phone matching")),
	), tools.CheckDuplicates(deps))

	s.AddTool(mcp.NewTool("create_person",
		mcp.WithDescription("Creates a contact; cached people pages are invalidated"),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Person fields: name, emails, phones, stageId, customFields, tags, ...")),
	), tools.CreateRecord(deps, "people"))

	s.AddTool(mcp.NewTool("update_person",
		mcp.WithDescription("Updates a contact by ID; cached people pages are invalidated"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Person ID")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Fields to update")),
	), tools.UpdateRecord(deps, "people"))

	s.AddTool(mcp.NewTool("delete_person",
		mcp.WithDescription("Deletes a contact by ID; cached people pages are invalidated"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Person ID")),
	), tools.DeleteRecord(deps, "people"))

	s.AddTool(mcp.NewTool("create_custom_field",
		mcp.WithDescription("Creates a custom field; cached schema and discovery snapshots are invalidated"),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Field definition: name, label, type")),
	), tools.CreateRecord(deps, "customFields"))

	s.AddTool(mcp.NewTool("update_custom_field",
		mcp.WithDescription("Updates a custom field by ID; cached schema and discovery snapshots are invalidated"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Custom field ID")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Fields to update")),
	), tools.UpdateRecord(deps, "customFields"))

	s.AddTool(mcp.NewTool("delete_custom_field",
		mcp.WithDescription("Deletes a custom field by ID; cached schema and discovery snapshots are invalidated"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Custom field ID")),
	), tools.DeleteRecord(deps, "customFields"))

	s.AddTool(mcp.NewTool("get_cache_stats",
		mcp.WithDescription("Reports response cache hit/miss/eviction counters and current size"),
	), tools.CacheStats(deps))

	logger.Infof("Registered query, discovery, dedup, and write tools")
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }
