// Package discovery builds a keyword-searchable catalog of where data lives
// in the remote CRM: record categories, pipeline stages, tenant-defined
// custom fields, and lead sources. The per-tenant schema is unknown at build
// time, so everything beyond the static categories is discovered live.
package discovery

// EntityType classifies a catalog entry.
type EntityType string

// Entity types, in ranking precedence order.
const (
	TypeCategory EntityType = "category"
	TypeStage    EntityType = "stage"
	TypeField    EntityType = "field"
	TypeSource   EntityType = "source"
)

// typePrecedence breaks score ties so output stays deterministic.
var typePrecedence = map[EntityType]int{
	TypeCategory: 0,
	TypeStage:    1,
	TypeField:    2,
	TypeSource:   3,
}

// Entity is one searchable unit in the catalog. Snapshots are immutable;
// each discovery call builds fresh ones.
type Entity struct {
	Type        EntityType `json:"type"`
	Name        string     `json:"name"`
	ID          string     `json:"id,omitempty"`
	Description string     `json:"description"`
	UsageHint   string     `json:"usageHint"`
	Score       int        `json:"score"`
}

// categoryInfo describes a static record category exposed by the remote.
type categoryInfo struct {
	name        string
	description string
	keywords    []string
	filters     []string
}

// categories is the static half of the catalog. Stages, custom fields, and
// sources are fetched live because they are tenant-defined.
var categories = []categoryInfo{
	{
		name:        "people",
		description: "Contacts and leads - people in the database",
		keywords:    []string{"contact", "lead", "person", "client", "prospect", "customer"},
		filters:     []string{"stageId", "assignedUserId", "sourceId", "tags", "search"},
	},
	{
		name:        "deals",
		description: "Deals and transactions",
		keywords:    []string{"deal", "transaction", "sale", "listing", "contract"},
		filters:     []string{"personId", "pipelineId", "stageId"},
	},
	{
		name:        "tasks",
		description: "Tasks and to-dos assigned to team members",
		keywords:    []string{"task", "todo", "action", "followup", "reminder"},
		filters:     []string{"personId", "assignedTo", "status"},
	},
	{
		name:        "events",
		description: "Activities and interactions",
		keywords:    []string{"event", "activity", "interaction", "history", "log"},
		filters:     []string{"personId", "type"},
	},
	{
		name:        "calls",
		description: "Phone call records",
		keywords:    []string{"call", "phone", "conversation", "dial"},
		filters:     []string{"personId"},
	},
	{
		name:        "notes",
		description: "Notes and comments about contacts",
		keywords:    []string{"note", "comment", "memo", "annotation"},
		filters:     []string{"personId"},
	},
	{
		name:        "appointments",
		description: "Scheduled appointments and meetings",
		keywords:    []string{"appointment", "meeting", "showing", "schedule"},
		filters:     []string{"personId", "startDate", "endDate"},
	},
}
