package mcp

import "github.com/mark3labs/mcp-go/mcp"

var importToolDef = mcp.NewTool("cohesion_import",
	mcp.WithDescription("Import a table document (YAML or JSON) into the local base. The first imported table becomes active."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to a .yaml, .yml or .json table document")),
	mcp.WithString("mode", mcp.Description("Name collision mode"), mcp.Enum("error", "replace")),
	mcp.WithBoolean("activate", mcp.Description("Make the imported table active")),
)

var tablesToolDef = mcp.NewTool("cohesion_tables",
	mcp.WithDescription("List tables in the local base with their fields and row counts."),
)

var recordsToolDef = mcp.NewTool("cohesion_records",
	mcp.WithDescription("List rows of a table (default: the active table), with cells as the analysis reads them."),
	mcp.WithString("table", mcp.Description("Table id or name")),
	mcp.WithNumber("limit", mcp.Description("Maximum rows to return (default 20, max 200)")),
	mcp.WithNumber("offset", mcp.Description("Rows to skip")),
)

var selectToolDef = mcp.NewTool("cohesion_select",
	mcp.WithDescription("Select rows of the active table. Analysis uses the first selected row. An empty list clears the selection."),
	mcp.WithArray("record_ids", mcp.Description("Record ids to select"), mcp.Items(map[string]any{"type": "string"})),
)

var fieldsToolDef = mcp.NewTool("cohesion_fields",
	mcp.WithDescription("Wait for the host data API, then list the text fields that can be analyzed."),
)

var analyzeToolDef = mcp.NewTool("cohesion_analyze",
	mcp.WithDescription("Score the selected row: how well the items in one field fit the category in another."),
	mcp.WithString("category", mcp.Required(), mcp.Description("Category field id or name")),
	mcp.WithString("items", mcp.Required(), mcp.Description("Items field id or name")),
	mcp.WithString("method", mcp.Description("Aggregation method"), mcp.Enum("mean", "median")),
)

var scoreToolDef = mcp.NewTool("cohesion_score",
	mcp.WithDescription("Score free text without the host. Items are split on newlines, commas and semicolons (ASCII or full-width)."),
	mcp.WithString("category", mcp.Required(), mcp.Description("Category text")),
	mcp.WithString("items", mcp.Required(), mcp.Description("Items text")),
	mcp.WithString("method", mcp.Description("Aggregation method"), mcp.Enum("mean", "median")),
)
